package sessionperiod

import (
	"context"

	domain "academy/internal/domain/sessionperiod"
)

// Store persists session periods (per-category month windows).
type Store interface {
	// Get returns the period for (year, category, month), or (nil, nil)
	// when none has been configured.
	Get(ctx context.Context, year int, category string, month int) (*domain.Period, error)
	Save(ctx context.Context, p domain.Period) error
	ListByYear(ctx context.Context, year int) ([]domain.Period, error)
}
