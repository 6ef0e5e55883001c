package student

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrEmptyID        = errors.New("student must have an id")
	ErrEmptyName      = errors.New("student name cannot be empty")
	ErrNoEnrollments  = errors.New("student must have at least one enrollment")
	ErrEmptyClassName = errors.New("enrollment class name cannot be empty")
	ErrEmptyStart     = errors.New("enrollment start date cannot be zero")
	ErrInvalidWindow  = errors.New("enrollment end date cannot be before start date")
)

// Student is one roster entry with one or more class enrollments. The first
// enrollment is the primary class; the rest are auxiliary.
type Student struct {
	ID          string
	Name        string
	School      string
	Grade       string
	Enrollments []Enrollment

	// DefaultRateItemName names the rate policy item used for classes
	// without an explicit per-class override.
	DefaultRateItemName string
}

// Enrollment binds a student to one class for a validity window. A zero
// EndDate means the enrollment is open-ended.
type Enrollment struct {
	ClassName string
	Subject   string
	Slots     []string // schedule slots, e.g. "Mon 16:00-17:30"
	Weekdays  []string // explicit weekday names, unioned with slot tokens
	StartDate time.Time
	EndDate   time.Time

	// RateItemName names a per-class rate policy override; empty falls back
	// to the student default, then to a school-level name match.
	RateItemName string
}

// Validate checks if the Student has valid data.
// PRE: Student struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Student) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if len(s.Enrollments) == 0 {
		return ErrNoEnrollments
	}
	for i := range s.Enrollments {
		if err := s.Enrollments[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks if the Enrollment has valid data.
// PRE: Enrollment struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Enrollment) Validate() error {
	if strings.TrimSpace(e.ClassName) == "" {
		return ErrEmptyClassName
	}
	if e.StartDate.IsZero() {
		return ErrEmptyStart
	}
	if !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		return ErrInvalidWindow
	}
	return nil
}

// OpenEnded returns true if the enrollment has no end date.
// INVARIANT: Enrollment fields are not mutated
func (e *Enrollment) OpenEnded() bool {
	return e.EndDate.IsZero()
}

// WindowContains returns true if the given date falls inside the
// enrollment's validity window.
// PRE: date is a valid time
// INVARIANT: Enrollment fields are not mutated
func (e *Enrollment) WindowContains(date time.Time) bool {
	d := dayOf(date)
	if d.Before(dayOf(e.StartDate)) {
		return false
	}
	if e.OpenEnded() {
		return true
	}
	return !d.After(dayOf(e.EndDate))
}

// IntersectsRange returns true if the validity window overlaps [from, to].
// PRE: from is not after to
// INVARIANT: Enrollment fields are not mutated
func (e *Enrollment) IntersectsRange(from, to time.Time) bool {
	if dayOf(e.StartDate).After(dayOf(to)) {
		return false
	}
	if e.OpenEnded() {
		return true
	}
	return !dayOf(e.EndDate).Before(dayOf(from))
}

// VisibleIn returns true if at least one enrollment window intersects
// [from, to]; students without a visible enrollment are dropped from the
// reporting period entirely.
// PRE: from is not after to
// INVARIANT: Student fields are not mutated
func (s *Student) VisibleIn(from, to time.Time) bool {
	for i := range s.Enrollments {
		if s.Enrollments[i].IntersectsRange(from, to) {
			return true
		}
	}
	return false
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
