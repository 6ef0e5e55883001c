package holiday

import (
	"context"

	domain "academy/internal/domain/holiday"
)

// Store persists academy holidays.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Holiday, error)
	Save(ctx context.Context, h domain.Holiday) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Holiday, error)
	// ListOverlapping returns holidays whose range intersects
	// [fromKey, toKey], inclusive.
	ListOverlapping(ctx context.Context, fromKey string, toKey string) ([]domain.Holiday, error)
}
