package settlement

import (
	"context"

	domain "academy/internal/domain/settlement"
)

// Store persists monthly settlements keyed by (teacher, month).
type Store interface {
	// Get returns the settlement for a teacher-month, or (nil, nil) when
	// none has been saved yet.
	Get(ctx context.Context, teacherID string, month string) (*domain.Monthly, error)
	Save(ctx context.Context, m domain.Monthly) error
	ListByMonth(ctx context.Context, month string) ([]domain.Monthly, error)
}
