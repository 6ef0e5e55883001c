package settlement

import (
	"errors"
	"time"

	"academy/internal/domain/compensation"
)

// Domain errors
var (
	ErrEmptyTeacherID = errors.New("settlement must be associated with a teacher")
	ErrBadMonth       = errors.New("settlement month must be YYYY-MM")
)

// Monthly is one teacher-month's compensation adjustments plus, once
// finalized, a frozen snapshot of the rate policy in force. The cycle
// unfinalized -> finalized -> unfinalized is re-entrant; there is no
// terminal state. Bonus toggles and the manual amount stay editable after
// finalization.
type Monthly struct {
	TeacherID         string
	Month             string // YYYY-MM
	HasBlogBonus      bool
	HasRetentionBonus bool
	OtherAmount       int
	Note              string
	IsFinalized       bool
	FinalizedAt       time.Time
	FrozenConfig      *compensation.Config
}

// Validate checks if the Monthly settlement has valid data.
// PRE: Monthly struct is populated
// POST: Returns nil if valid, error otherwise
func (m *Monthly) Validate() error {
	if m.TeacherID == "" {
		return ErrEmptyTeacherID
	}
	if _, err := time.Parse("2006-01", m.Month); err != nil {
		return ErrBadMonth
	}
	if m.IsFinalized && m.FrozenConfig == nil {
		return errors.New("finalized settlement must carry a frozen config")
	}
	return nil
}

// Finalize freezes the live config into the settlement.
// PRE: liveConfig is the config currently in force for this teacher
// POST: IsFinalized=true, FinalizedAt=now, FrozenConfig is a deep copy that
// later live edits cannot reach
func (m *Monthly) Finalize(liveConfig *compensation.Config, now time.Time) {
	m.IsFinalized = true
	m.FinalizedAt = now
	m.FrozenConfig = liveConfig.Clone()
}

// Unfinalize reopens the settlement.
// PRE: none
// POST: IsFinalized=false, FinalizedAt and FrozenConfig cleared
func (m *Monthly) Unfinalize() {
	m.IsFinalized = false
	m.FinalizedAt = time.Time{}
	m.FrozenConfig = nil
}

// EffectiveConfig selects the config any reader of this month's totals must
// use: the frozen snapshot when finalized, the live config otherwise. This
// is the only place the config source branches.
// INVARIANT: Monthly fields are not mutated
func (m *Monthly) EffectiveConfig(live *compensation.Config) *compensation.Config {
	if m.IsFinalized && m.FrozenConfig != nil {
		return m.FrozenConfig
	}
	return live
}
