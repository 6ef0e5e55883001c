package student

import (
	"context"

	domain "academy/internal/domain/student"
)

// Store persists students and their enrollments.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Student, error)
	Save(ctx context.Context, s domain.Student) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Student, error)
}
