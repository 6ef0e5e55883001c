package sessionperiod

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"academy/internal/domain/attendance"
)

// Domain errors
var (
	ErrEmptyCategory = errors.New("period category cannot be empty")
	ErrBadYear       = errors.New("period year must be positive")
	ErrBadMonth      = errors.New("period month must be 1..12")
	ErrNoRanges      = errors.New("period must have at least one date range")
	ErrBadRange      = errors.New("range start must be before or equal to range end")
)

// DateRange is one contiguous stretch of class days inside a period.
type DateRange struct {
	StartKey string // YYYY-MM-DD
	EndKey   string // YYYY-MM-DD, inclusive
}

// Period is one category's session window for a month (e.g. the regular
// course, or a special lecture series), with the number of sessions it
// bills for.
type Period struct {
	ID            string // {year}-{category}-{month}
	Year          int
	Category      string
	Month         int
	Ranges        []DateRange
	SessionsCount int
}

// PeriodID renders the canonical id for a (year, category, month).
func PeriodID(year int, category string, month int) string {
	return fmt.Sprintf("%d-%s-%d", year, category, month)
}

// Validate checks if the Period has valid data.
// PRE: Period struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Period) Validate() error {
	if p.Year <= 0 {
		return ErrBadYear
	}
	if strings.TrimSpace(p.Category) == "" {
		return ErrEmptyCategory
	}
	if p.Month < 1 || p.Month > 12 {
		return ErrBadMonth
	}
	if len(p.Ranges) == 0 {
		return ErrNoRanges
	}
	for _, r := range p.Ranges {
		if _, err := time.Parse(attendance.DateFormat, r.StartKey); err != nil {
			return ErrBadRange
		}
		if _, err := time.Parse(attendance.DateFormat, r.EndKey); err != nil {
			return ErrBadRange
		}
		if r.StartKey > r.EndKey {
			return ErrBadRange
		}
	}
	return nil
}

// ContainsKey returns true if the date key falls inside any of the period's
// ranges.
// INVARIANT: Period fields are not mutated
func (p *Period) ContainsKey(dateKey string) bool {
	for _, r := range p.Ranges {
		if dateKey >= r.StartKey && dateKey <= r.EndKey {
			return true
		}
	}
	return false
}
