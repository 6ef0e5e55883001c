package compconfig

import (
	"context"

	"academy/internal/domain/compensation"
)

// Store persists compensation configs: one optional config per teacher plus
// one global fallback.
type Store interface {
	// GetGlobal returns the global config, or (nil, nil) when none exists.
	GetGlobal(ctx context.Context) (*compensation.Config, error)
	// GetByTeacher returns a teacher's config, or (nil, nil) when the
	// teacher has no override.
	GetByTeacher(ctx context.Context, teacherID string) (*compensation.Config, error)
	SaveGlobal(ctx context.Context, cfg *compensation.Config) error
	SaveByTeacher(ctx context.Context, teacherID string, cfg *compensation.Config) error
}
