package orchestrators

import (
	"context"
	"log/slog"

	"academy/internal/domain/compensation"
)

// ConfigSaveStore is the store surface config saves need.
type ConfigSaveStore interface {
	SaveGlobal(ctx context.Context, cfg *compensation.Config) error
	SaveByTeacher(ctx context.Context, teacherID string, cfg *compensation.Config) error
}

// SaveCompensationConfigInput carries one config upsert. An empty TeacherID
// targets the global fallback config.
type SaveCompensationConfigInput struct {
	TeacherID string
	Config    compensation.Config
	SavedBy   string
}

// SaveCompensationConfigDeps holds dependencies for SaveCompensationConfig.
type SaveCompensationConfigDeps struct {
	ConfigStore ConfigSaveStore
}

// ExecuteSaveCompensationConfig validates and upserts a compensation
// config, global or per-teacher. Finalized settlements are unaffected:
// they read their frozen snapshot, not the live config.
// PRE: every rate policy item is valid
// POST: Config persisted
func ExecuteSaveCompensationConfig(ctx context.Context, input SaveCompensationConfigInput, deps SaveCompensationConfigDeps) error {
	for i := range input.Config.Items {
		if err := input.Config.Items[i].Validate(); err != nil {
			return err
		}
	}

	var err error
	if input.TeacherID == "" {
		err = deps.ConfigStore.SaveGlobal(ctx, &input.Config)
	} else {
		err = deps.ConfigStore.SaveByTeacher(ctx, input.TeacherID, &input.Config)
	}
	if err != nil {
		return err
	}

	slog.Info("config_event", "event", "compensation_config_saved",
		"teacher_id", input.TeacherID, "items", len(input.Config.Items),
		"fee_percent", input.Config.FeePercent, "by", input.SavedBy)
	return nil
}
