package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy/internal/domain/enrollmentterm"
)

// TermStore is the store surface the term orchestrators need.
type TermStore interface {
	GetByID(ctx context.Context, id string) (enrollmentterm.Term, error)
	GetActiveByBillingRecord(ctx context.Context, billingRecordID string) (*enrollmentterm.Term, error)
	Save(ctx context.Context, term enrollmentterm.Term) error
	ListByStudent(ctx context.Context, studentID string) ([]enrollmentterm.Term, error)
}

// CreateEnrollmentTermInput carries one term creation.
type CreateEnrollmentTermInput struct {
	StudentID       string
	Month           string // YYYY-MM
	BilledAmount    int
	UnitPrice       int
	Source          string // auto | manual
	BillingRecordID string // set for auto terms; empty for manual entries
}

// CreateEnrollmentTermDeps holds dependencies for CreateEnrollmentTerm.
type CreateEnrollmentTermDeps struct {
	TermStore TermStore

	Now   func() time.Time // defaults to time.Now
	NewID func() string    // defaults to uuid.NewString
}

// CreateEnrollmentTermResult reports the created (or pre-existing) term.
type CreateEnrollmentTermResult struct {
	TermID         string
	TermNumber     int
	AlreadyExisted bool
}

// ExecuteCreateEnrollmentTerm creates a billing term. Creation is
// idempotent per billing record: when an active term already references the
// billing record id, the existing term is returned with ErrTermExists and
// no duplicate is created. Manual terms carry no billing record and always
// create. The term number is one past the student's highest term number in
// the month.
// PRE: StudentID is non-empty, Month is YYYY-MM
// POST: Exactly one active term exists per billing record id
func ExecuteCreateEnrollmentTerm(ctx context.Context, input CreateEnrollmentTermInput, deps CreateEnrollmentTermDeps) (CreateEnrollmentTermResult, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	newID := uuid.NewString
	if deps.NewID != nil {
		newID = deps.NewID
	}

	if input.BillingRecordID != "" {
		existing, err := deps.TermStore.GetActiveByBillingRecord(ctx, input.BillingRecordID)
		if err != nil {
			return CreateEnrollmentTermResult{}, fmt.Errorf("billing record lookup failed: %w", err)
		}
		if existing != nil {
			return CreateEnrollmentTermResult{
				TermID:         existing.ID,
				TermNumber:     existing.TermNumber,
				AlreadyExisted: true,
			}, enrollmentterm.ErrTermExists
		}
	}

	termNumber, err := nextTermNumber(ctx, deps.TermStore, input.StudentID, input.Month)
	if err != nil {
		return CreateEnrollmentTermResult{}, err
	}

	term := enrollmentterm.Term{
		ID:              newID(),
		StudentID:       input.StudentID,
		Month:           input.Month,
		TermNumber:      termNumber,
		BilledAmount:    input.BilledAmount,
		UnitPrice:       input.UnitPrice,
		Source:          input.Source,
		Status:          enrollmentterm.StatusActive,
		BillingRecordID: input.BillingRecordID,
		CreatedAt:       now(),
	}
	if err := term.Validate(); err != nil {
		return CreateEnrollmentTermResult{}, err
	}
	if err := deps.TermStore.Save(ctx, term); err != nil {
		return CreateEnrollmentTermResult{}, err
	}

	slog.Info("term_event", "event", "term_created",
		"term_id", term.ID, "student_id", input.StudentID,
		"month", input.Month, "term_number", termNumber, "source", input.Source)

	return CreateEnrollmentTermResult{TermID: term.ID, TermNumber: termNumber}, nil
}

// nextTermNumber returns one past the student's highest term number within
// the month; cancelled terms still count so numbers are never reused.
func nextTermNumber(ctx context.Context, store TermStore, studentID string, month string) (int, error) {
	terms, err := store.ListByStudent(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("term list failed: %w", err)
	}
	highest := 0
	for _, t := range terms {
		if t.Month == month && t.TermNumber > highest {
			highest = t.TermNumber
		}
	}
	return highest + 1, nil
}

// CancelEnrollmentTermInput identifies the term to cancel.
type CancelEnrollmentTermInput struct {
	TermID      string
	CancelledBy string
}

// ExecuteCancelEnrollmentTerm soft-cancels a term. The row survives for
// billing history; a replacement term may reuse its billing record id.
// PRE: TermID refers to an existing term
// POST: Term status is cancelled
func ExecuteCancelEnrollmentTerm(ctx context.Context, input CancelEnrollmentTermInput, deps CreateEnrollmentTermDeps) error {
	term, err := deps.TermStore.GetByID(ctx, input.TermID)
	if err != nil {
		return err
	}

	term.Cancel()
	if err := deps.TermStore.Save(ctx, term); err != nil {
		return err
	}

	slog.Info("term_event", "event", "term_cancelled",
		"term_id", term.ID, "student_id", term.StudentID, "by", input.CancelledBy)
	return nil
}
