package enrollmentterm

import (
	"errors"
	"time"
)

// Source constants for how a term came to exist.
const (
	SourceAuto   = "auto"   // created on billing completion
	SourceManual = "manual" // entered by staff
)

// Status constants for the term lifecycle. Terms are soft-cancelled, never
// hard-deleted.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Domain errors
var (
	ErrEmptyID        = errors.New("term must have an id")
	ErrEmptyStudentID = errors.New("term must be associated with a student")
	ErrBadMonth       = errors.New("term month must be YYYY-MM")
	ErrBadTermNumber  = errors.New("term number must be positive")
	ErrBadSource      = errors.New("term source must be auto or manual")
	ErrBadStatus      = errors.New("term status must be active or cancelled")
	// ErrTermExists is returned when an active term already exists for the
	// same billing record; creation is idempotent, not duplicated.
	ErrTermExists = errors.New("term already exists for this billing record")
)

// Term is one billing-cycle counter: the Nth time a student has been
// charged within a month. At most one active term may exist per distinct
// billing record id.
type Term struct {
	ID              string
	StudentID       string
	Month           string // YYYY-MM
	TermNumber      int
	BilledAmount    int
	UnitPrice       int
	Source          string // auto | manual
	Status          string // active | cancelled
	BillingRecordID string // empty for manual entries
	CreatedAt       time.Time
}

// Validate checks if the Term has valid data.
// PRE: Term struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Term) Validate() error {
	if t.ID == "" {
		return ErrEmptyID
	}
	if t.StudentID == "" {
		return ErrEmptyStudentID
	}
	if _, err := time.Parse("2006-01", t.Month); err != nil {
		return ErrBadMonth
	}
	if t.TermNumber <= 0 {
		return ErrBadTermNumber
	}
	if t.Source != SourceAuto && t.Source != SourceManual {
		return ErrBadSource
	}
	if t.Status != StatusActive && t.Status != StatusCancelled {
		return ErrBadStatus
	}
	return nil
}

// Active returns true if the term has not been cancelled.
// INVARIANT: Term fields are not mutated
func (t *Term) Active() bool {
	return t.Status == StatusActive
}

// Cancel soft-cancels the term.
// PRE: none
// POST: Status is cancelled; the row is never removed
func (t *Term) Cancel() {
	t.Status = StatusCancelled
}
