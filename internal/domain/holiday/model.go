package holiday

import (
	"errors"
	"strings"
	"time"

	"academy/internal/domain/attendance"
)

// Domain errors
var (
	ErrEmptyName    = errors.New("holiday name cannot be empty")
	ErrBadStartDate = errors.New("start date must be YYYY-MM-DD")
	ErrBadEndDate   = errors.New("end date must be YYYY-MM-DD")
	ErrInvalidDates = errors.New("start date must be before or equal to end date")
)

// Holiday is a day (or range) when the academy holds no classes. Holidays
// only feed display overlays on the attendance grid; compensation math
// never reads them.
type Holiday struct {
	ID       string
	Name     string
	StartKey string // YYYY-MM-DD
	EndKey   string // YYYY-MM-DD, inclusive
}

// Validate checks if the Holiday has valid data.
// PRE: Holiday struct is populated
// POST: Returns nil if valid, error otherwise
func (h *Holiday) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return ErrEmptyName
	}
	if _, err := time.Parse(attendance.DateFormat, h.StartKey); err != nil {
		return ErrBadStartDate
	}
	if _, err := time.Parse(attendance.DateFormat, h.EndKey); err != nil {
		return ErrBadEndDate
	}
	if h.StartKey > h.EndKey {
		return ErrInvalidDates
	}
	return nil
}

// ContainsKey returns true if the given date key falls within this holiday.
// Date keys compare lexicographically because of the fixed format.
// INVARIANT: Holiday fields are not mutated
func (h *Holiday) ContainsKey(dateKey string) bool {
	return dateKey >= h.StartKey && dateKey <= h.EndKey
}

// KeysIn returns the holiday date keys that fall inside [fromKey, toKey].
// PRE: fromKey <= toKey, both YYYY-MM-DD
// POST: Returns the covered keys in ascending order
func (h *Holiday) KeysIn(fromKey, toKey string) []string {
	start := h.StartKey
	if fromKey > start {
		start = fromKey
	}
	end := h.EndKey
	if toKey < end {
		end = toKey
	}
	if start > end {
		return nil
	}
	t, err := time.Parse(attendance.DateFormat, start)
	if err != nil {
		return nil
	}
	var keys []string
	for {
		k := t.Format(attendance.DateFormat)
		if k > end {
			break
		}
		keys = append(keys, k)
		t = t.AddDate(0, 0, 1)
	}
	return keys
}
