package attendance

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrEmptyRosterID = errors.New("roster record must have an id")
	ErrBadStatus     = errors.New("status must be one of: present, absent, late, early_leave, excused")
	ErrEmptyActor    = errors.New("updated_by cannot be empty")
)

// RosterRecord is the per-date, human-status mirror of a ledger cell. One
// row per (date, student, class); created on the first status change for a
// date, mutated in place afterwards, never physically deleted.
type RosterRecord struct {
	ID           string
	ClassDate    string // YYYY-MM-DD
	StudentID    string
	StudentName  string
	ClassID      string
	ClassName    string
	Status       Status
	CheckInTime  time.Time
	CheckOutTime time.Time
	Note         string
	UpdatedBy    string
	UpdatedAt    time.Time
}

// Validate checks if the RosterRecord has valid data.
// PRE: RosterRecord struct is populated
// POST: Returns nil if valid, error otherwise
func (r *RosterRecord) Validate() error {
	if r.ID == "" {
		return ErrEmptyRosterID
	}
	if r.StudentID == "" {
		return ErrEmptyStudentID
	}
	if _, err := time.Parse(DateFormat, r.ClassDate); err != nil {
		return ErrBadDateKey
	}
	if !IsNamed(r.Status) {
		return ErrBadStatus
	}
	if r.UpdatedBy == "" {
		return ErrEmptyActor
	}
	return nil
}

// LedgerValue returns the ledger cell value this record mirrors.
// INVARIANT: RosterRecord fields are not mutated
func (r *RosterRecord) LedgerValue() float64 {
	return ValueFromStatus(r.Status)
}
