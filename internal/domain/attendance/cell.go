package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical date key format used across the ledger,
// roster and history tables.
const DateFormat = "2006-01-02"

// MonthFormat is the canonical year-month key format ("2026-01").
const MonthFormat = "2006-01"

// Domain errors
var (
	ErrEmptyStudentID = errors.New("cell must be associated with a student")
	ErrEmptyClassName = errors.New("cell must be associated with a class")
	ErrBadDateKey     = errors.New("date key must be YYYY-MM-DD")
	ErrBadCellKey     = errors.New("cell key must be className::dateKey")
)

// CellKey identifies one attendance fact: one student, one class, one date.
type CellKey struct {
	StudentID string
	ClassName string
	DateKey   string // YYYY-MM-DD
}

// String renders the class-scoped map key used inside a student-month
// ledger document ("className::dateKey").
// INVARIANT: CellKey fields are not mutated
func (k CellKey) String() string {
	return k.ClassName + "::" + k.DateKey
}

// Validate checks if the CellKey has valid data.
// PRE: CellKey struct is populated
// POST: Returns nil if valid, error otherwise
func (k CellKey) Validate() error {
	if k.StudentID == "" {
		return ErrEmptyStudentID
	}
	if k.ClassName == "" {
		return ErrEmptyClassName
	}
	if _, err := time.Parse(DateFormat, k.DateKey); err != nil {
		return ErrBadDateKey
	}
	return nil
}

// ParseScopedKey splits a "className::dateKey" ledger map key.
// PRE: none
// POST: Returns className and dateKey, or an error for malformed keys
func ParseScopedKey(key string) (className, dateKey string, err error) {
	i := strings.LastIndex(key, "::")
	if i <= 0 || i+2 >= len(key) {
		return "", "", ErrBadCellKey
	}
	return key[:i], key[i+2:], nil
}

// MonthOf returns the year-month key ("2026-01") a date key belongs to.
// PRE: dateKey is YYYY-MM-DD
// POST: Returns the first seven characters; malformed input returns the
// input unchanged so callers fail on lookup rather than panic
func MonthOf(dateKey string) string {
	if len(dateKey) < len(MonthFormat) {
		return dateKey
	}
	return dateKey[:len(MonthFormat)]
}

// Cell is one ledger fact: the session value plus its independently mutable
// annotations (memo, homework flag, cell color). Value semantics: nil means
// unset, 0 means absent, positive fractional values (0.5 .. 3.0) are
// attended session-units.
type Cell struct {
	StudentID string
	ClassName string
	DateKey   string // YYYY-MM-DD
	Value     *float64
	Memo      string
	Homework  bool
	CellColor string
	UpdatedAt time.Time
}

// Key returns the CellKey for this cell.
// INVARIANT: Cell fields are not mutated
func (c *Cell) Key() CellKey {
	return CellKey{StudentID: c.StudentID, ClassName: c.ClassName, DateKey: c.DateKey}
}

// SessionUnits returns the attended session-units for this cell: the stored
// value verbatim (0.5, 1, 1.5 .. 3.0).
// PRE: none
// POST: Returns 0 for nil/absent cells, never negative
func (c *Cell) SessionUnits() float64 {
	if c.Value == nil || *c.Value <= 0 {
		return 0
	}
	return *c.Value
}

// Attended returns true if the cell records any attended session-units.
// INVARIANT: Cell fields are not mutated
func (c *Cell) Attended() bool {
	return c.SessionUnits() > 0
}

// FormatMonth renders a time as a year-month key.
func FormatMonth(t time.Time) string {
	return t.Format(MonthFormat)
}

// MonthBounds returns the first and last date keys of a year-month key.
// PRE: month is YYYY-MM
// POST: Returns firstDay, lastDay in YYYY-MM-DD, or an error for bad input
func MonthBounds(month string) (first, last string, err error) {
	t, err := time.Parse(MonthFormat, month)
	if err != nil {
		return "", "", fmt.Errorf("invalid month %q: %w", month, err)
	}
	firstDay := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstDay.AddDate(0, 1, -1)
	return firstDay.Format(DateFormat), lastDay.Format(DateFormat), nil
}
