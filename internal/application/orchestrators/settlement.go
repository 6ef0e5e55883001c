package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy/internal/domain/compensation"
	"academy/internal/domain/outbox"
	"academy/internal/domain/settlement"
)

// ErrNoLiveConfig rejects finalization when neither a per-teacher nor a
// global compensation config exists: there is nothing to freeze.
var ErrNoLiveConfig = errors.New("no compensation config exists for this teacher")

// SettlementStore is the store surface the settlement orchestrators need.
type SettlementStore interface {
	Get(ctx context.Context, teacherID string, month string) (*settlement.Monthly, error)
	Save(ctx context.Context, m settlement.Monthly) error
}

// ConfigResolveStore resolves the live compensation config for a teacher.
type ConfigResolveStore interface {
	GetGlobal(ctx context.Context) (*compensation.Config, error)
	GetByTeacher(ctx context.Context, teacherID string) (*compensation.Config, error)
}

// resolveLiveConfig returns the teacher's config override when present,
// else the global fallback.
func resolveLiveConfig(ctx context.Context, store ConfigResolveStore, teacherID string) (*compensation.Config, error) {
	teacherCfg, err := store.GetByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("teacher config lookup failed: %w", err)
	}
	globalCfg, err := store.GetGlobal(ctx)
	if err != nil {
		return nil, fmt.Errorf("global config lookup failed: %w", err)
	}
	return compensation.ResolveConfig(teacherCfg, globalCfg), nil
}

// loadOrCreateSettlement returns the stored settlement for a teacher-month
// or a fresh unfinalized one.
func loadOrCreateSettlement(ctx context.Context, store SettlementStore, teacherID string, month string) (settlement.Monthly, error) {
	m, err := store.Get(ctx, teacherID, month)
	if err != nil {
		return settlement.Monthly{}, err
	}
	if m != nil {
		return *m, nil
	}
	return settlement.Monthly{TeacherID: teacherID, Month: month}, nil
}

// UpdateSettlementInput carries the editable settlement fields. These stay
// editable regardless of finalization.
type UpdateSettlementInput struct {
	TeacherID string
	Month     string // YYYY-MM

	HasBlogBonus      *bool
	HasRetentionBonus *bool
	OtherAmount       *int
	Note              *string
}

// UpdateSettlementDeps holds dependencies for UpdateSettlement.
type UpdateSettlementDeps struct {
	SettlementStore SettlementStore
}

// ExecuteUpdateSettlement applies bonus toggles, the manual amount and the
// note. Only non-nil fields are applied.
// PRE: TeacherID is non-empty, Month is YYYY-MM
// POST: Settlement persisted; finalization state untouched
func ExecuteUpdateSettlement(ctx context.Context, input UpdateSettlementInput, deps UpdateSettlementDeps) error {
	m, err := loadOrCreateSettlement(ctx, deps.SettlementStore, input.TeacherID, input.Month)
	if err != nil {
		return err
	}

	if input.HasBlogBonus != nil {
		m.HasBlogBonus = *input.HasBlogBonus
	}
	if input.HasRetentionBonus != nil {
		m.HasRetentionBonus = *input.HasRetentionBonus
	}
	if input.OtherAmount != nil {
		m.OtherAmount = *input.OtherAmount
	}
	if input.Note != nil {
		m.Note = *input.Note
	}

	if err := m.Validate(); err != nil {
		return err
	}
	return deps.SettlementStore.Save(ctx, m)
}

// FinalizeSettlementInput identifies the teacher-month to finalize.
type FinalizeSettlementInput struct {
	TeacherID    string
	Month        string // YYYY-MM
	TeacherEmail string // optional: enables the notification email
	FinalizedBy  string
}

// FinalizeSettlementDeps holds dependencies for Finalize/Unfinalize.
type FinalizeSettlementDeps struct {
	SettlementStore SettlementStore
	ConfigStore     ConfigResolveStore
	Outbox          OutboxEnqueuer // optional: nil skips the notification email

	Now   func() time.Time // defaults to time.Now
	NewID func() string    // defaults to uuid.NewString
}

// settlementEmailPayload is the outbox payload for the finalization email.
type settlementEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ExecuteFinalizeSettlement freezes the live compensation config into the
// settlement. Later live config edits cannot reach a finalized month. A
// notification email is enqueued best-effort on the outbox.
// PRE: A live config exists for the teacher (override or global)
// POST: Settlement is finalized with a deep-copied frozen config
func ExecuteFinalizeSettlement(ctx context.Context, input FinalizeSettlementInput, deps FinalizeSettlementDeps) error {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	newID := uuid.NewString
	if deps.NewID != nil {
		newID = deps.NewID
	}

	live, err := resolveLiveConfig(ctx, deps.ConfigStore, input.TeacherID)
	if err != nil {
		return err
	}
	if live == nil {
		return ErrNoLiveConfig
	}

	m, err := loadOrCreateSettlement(ctx, deps.SettlementStore, input.TeacherID, input.Month)
	if err != nil {
		return err
	}

	ts := now()
	m.Finalize(live, ts)
	if err := m.Validate(); err != nil {
		return err
	}
	if err := deps.SettlementStore.Save(ctx, m); err != nil {
		return err
	}

	slog.Info("settlement_event", "event", "finalized",
		"teacher_id", input.TeacherID, "month", input.Month, "by", input.FinalizedBy)

	if deps.Outbox != nil && input.TeacherEmail != "" {
		payload, err := json.Marshal(settlementEmailPayload{
			To:      input.TeacherEmail,
			Subject: fmt.Sprintf("Settlement finalized for %s", input.Month),
			Body: fmt.Sprintf(
				"Your compensation settlement for %s has been finalized. The rate policy in force was frozen with it; later policy changes will not affect this month.",
				input.Month),
		})
		if err == nil {
			e := outbox.Entry{
				ID:          newID(),
				ActionType:  outbox.ActionTypeEmail,
				Payload:     string(payload),
				Status:      outbox.StatusPending,
				MaxAttempts: 5,
				CreatedAt:   ts,
			}
			err = e.Validate()
			if err == nil {
				err = deps.Outbox.Save(ctx, e)
			}
		}
		if err != nil {
			slog.Warn("settlement_email_enqueue_failed", "teacher_id", input.TeacherID, "error", err.Error())
		}
	}

	return nil
}

// ExecuteUnfinalizeSettlement reopens a finalized settlement, discarding
// the frozen config. The finalize/unfinalize cycle is re-entrant.
// PRE: TeacherID is non-empty, Month is YYYY-MM
// POST: Settlement is unfinalized; readers fall back to the live config
func ExecuteUnfinalizeSettlement(ctx context.Context, input FinalizeSettlementInput, deps FinalizeSettlementDeps) error {
	m, err := loadOrCreateSettlement(ctx, deps.SettlementStore, input.TeacherID, input.Month)
	if err != nil {
		return err
	}

	m.Unfinalize()
	if err := m.Validate(); err != nil {
		return err
	}
	if err := deps.SettlementStore.Save(ctx, m); err != nil {
		return err
	}

	slog.Info("settlement_event", "event", "unfinalized",
		"teacher_id", input.TeacherID, "month", input.Month, "by", input.FinalizedBy)
	return nil
}
