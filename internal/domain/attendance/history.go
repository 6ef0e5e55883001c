package attendance

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrEmptyHistoryID = errors.New("history entry must have an id")
	ErrEmptyChangedBy = errors.New("changed_by cannot be empty")
)

// HistoryEntry is one immutable audit record, appended once per
// synchronization transaction. Entries are never updated or deleted.
type HistoryEntry struct {
	ID             string
	ClassDate      string // YYYY-MM-DD
	StudentID      string
	ClassID        string
	PreviousStatus *Status // nil when no roster record existed yet
	NewStatus      Status
	ChangedBy      string
	CreatedAt      time.Time
}

// Validate checks if the HistoryEntry has valid data.
// PRE: HistoryEntry struct is populated
// POST: Returns nil if valid, error otherwise
func (h *HistoryEntry) Validate() error {
	if h.ID == "" {
		return ErrEmptyHistoryID
	}
	if h.StudentID == "" {
		return ErrEmptyStudentID
	}
	if _, err := time.Parse(DateFormat, h.ClassDate); err != nil {
		return ErrBadDateKey
	}
	if h.PreviousStatus != nil && !IsNamed(*h.PreviousStatus) {
		return ErrBadStatus
	}
	if !IsNamed(h.NewStatus) {
		return ErrBadStatus
	}
	if h.ChangedBy == "" {
		return ErrEmptyChangedBy
	}
	if h.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}
