package attendance

// Status is the human-readable attendance state shown on the daily roster.
type Status string

// Named statuses. These are the only values the roster ever stores.
const (
	StatusPresent    Status = "present"
	StatusAbsent     Status = "absent"
	StatusLate       Status = "late"
	StatusEarlyLeave Status = "early_leave"
	StatusExcused    Status = "excused"
)

// Codec values. The ledger stores a numeric session value per cell; the five
// canonical integers map one-to-one onto the named statuses.
const (
	ValueAbsent     = 0.0
	ValuePresent    = 1.0
	ValueLate       = 2.0
	ValueEarlyLeave = 3.0
	ValueExcused    = 4.0
)

// StatusFromValue maps a ledger cell value to a roster status.
// PRE: none (total function)
// POST: Returns one of the five named statuses; nil and unrecognised values
// fall back to absent, never an error
func StatusFromValue(v *float64) Status {
	if v == nil {
		return StatusAbsent
	}
	switch *v {
	case ValueAbsent:
		return StatusAbsent
	case ValuePresent:
		return StatusPresent
	case ValueLate:
		return StatusLate
	case ValueEarlyLeave:
		return StatusEarlyLeave
	case ValueExcused:
		return StatusExcused
	default:
		return StatusAbsent
	}
}

// ValueFromStatus maps a roster status back to its ledger cell value.
// PRE: none (total function)
// POST: Exact inverse of StatusFromValue for the five named statuses;
// unknown statuses map to 0
func ValueFromStatus(s Status) float64 {
	switch s {
	case StatusPresent:
		return ValuePresent
	case StatusLate:
		return ValueLate
	case StatusEarlyLeave:
		return ValueEarlyLeave
	case StatusExcused:
		return ValueExcused
	default:
		return ValueAbsent
	}
}

// IsNamed returns true if s is one of the five named statuses.
// INVARIANT: s is not mutated
func IsNamed(s Status) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusEarlyLeave, StatusExcused:
		return true
	}
	return false
}
