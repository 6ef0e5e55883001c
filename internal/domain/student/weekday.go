package student

import (
	"sort"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday maps a weekday token to a time.Weekday, case-insensitively.
// PRE: none
// POST: Returns the weekday and true, or false for unrecognised tokens
func ParseWeekday(token string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(token))]
	return d, ok
}

// slotWeekdayToken extracts the weekday token from a schedule slot string:
// the substring before the first separator (space, '/', '-' or ':').
// PRE: none
// POST: Returns the token, possibly the whole slot when no separator exists
func slotWeekdayToken(slot string) string {
	if i := strings.IndexAny(slot, " /-:"); i >= 0 {
		return slot[:i]
	}
	return slot
}

// ScheduledWeekdays returns the weekdays this enrollment holds class on:
// the union of slot tokens and the explicit weekday list, de-duplicated and
// sorted Sunday-first.
// PRE: none
// POST: Returns a sorted, duplicate-free weekday list
func (e *Enrollment) ScheduledWeekdays() []time.Weekday {
	seen := make(map[time.Weekday]bool)
	for _, slot := range e.Slots {
		if d, ok := ParseWeekday(slotWeekdayToken(slot)); ok {
			seen[d] = true
		}
	}
	for _, name := range e.Weekdays {
		if d, ok := ParseWeekday(name); ok {
			seen[d] = true
		}
	}
	out := make([]time.Weekday, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScheduledOn returns true if the enrollment holds class on the given
// weekday.
// INVARIANT: Enrollment fields are not mutated
func (e *Enrollment) ScheduledOn(day time.Weekday) bool {
	for _, d := range e.ScheduledWeekdays() {
		if d == day {
			return true
		}
	}
	return false
}
