package enrollmentterm

import (
	"context"

	domain "academy/internal/domain/enrollmentterm"
)

// Store persists enrollment terms (billing periods).
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Term, error)
	// GetActiveByBillingRecord returns the active term created for a
	// billing record, or (nil, nil) when none exists. Used to make term
	// creation idempotent per billing event.
	GetActiveByBillingRecord(ctx context.Context, billingRecordID string) (*domain.Term, error)
	Save(ctx context.Context, term domain.Term) error
	ListByStudent(ctx context.Context, studentID string) ([]domain.Term, error)
	ListByMonth(ctx context.Context, month string) ([]domain.Term, error)
}
