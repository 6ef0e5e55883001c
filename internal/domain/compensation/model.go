package compensation

import (
	"errors"
	"math"
	"strings"
)

// Rate policy types.
const (
	TypeFixed      = "fixed"
	TypePercentage = "percentage"
)

// Domain errors
var (
	ErrEmptyItemName = errors.New("rate policy item name cannot be empty")
	ErrBadItemType   = errors.New("rate policy type must be fixed or percentage")
)

// RatePolicyItem defines pay per session-unit for one class tier.
type RatePolicyItem struct {
	Name        string
	Color       string
	Type        string // fixed | percentage
	FixedRate   int    // currency units, used verbatim when Type is fixed
	BaseTuition int    // currency units, percentage base
	Ratio       float64
}

// Validate checks if the RatePolicyItem has valid data.
// PRE: RatePolicyItem struct is populated
// POST: Returns nil if valid, error otherwise
func (i *RatePolicyItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyItemName
	}
	if i.Type != TypeFixed && i.Type != TypePercentage {
		return ErrBadItemType
	}
	return nil
}

// Incentives holds the bonus policy attached to a compensation config.
type Incentives struct {
	BlogBonus           int
	RetentionBonus      int
	RetentionTargetRate float64 // percent
}

// Config is the compensation policy for one teacher, or the global default.
type Config struct {
	FeePercent float64
	Items      []RatePolicyItem
	Incentives Incentives
}

// ItemByName returns the rate policy item with the given name, or nil.
// INVARIANT: Config fields are not mutated
func (c *Config) ItemByName(name string) *RatePolicyItem {
	if c == nil || name == "" {
		return nil
	}
	for i := range c.Items {
		if c.Items[i].Name == name {
			return &c.Items[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the config. Used when freezing a settlement
// so later live edits cannot reach the snapshot.
// INVARIANT: the receiver is not mutated
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{
		FeePercent: c.FeePercent,
		Incentives: c.Incentives,
	}
	if c.Items != nil {
		out.Items = make([]RatePolicyItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}

// rateRoundUnit is the granularity percentage rates are rounded to.
// Salaries are quoted in thousands of currency units.
const rateRoundUnit = 1000

// SessionRate computes one class-session's pay from a rate policy item and
// the global fee deduction. Percentage rates round half-up to the nearest
// thousand currency units (100000 won tuition, 45% ratio, 8.9% fee pays
// 41000, not 40995).
// PRE: none (total function; nil item yields 0)
// POST: Deterministic; never errors, even for zero or negative inputs
func SessionRate(item *RatePolicyItem, feePercent float64) int {
	if item == nil {
		return 0
	}
	switch item.Type {
	case TypeFixed:
		return item.FixedRate
	case TypePercentage:
		net := float64(item.BaseTuition) * (1 - feePercent/100) * (item.Ratio / 100)
		return int(math.Round(net/rateRoundUnit)) * rateRoundUnit
	default:
		return 0
	}
}

// ResolveConfig picks the per-teacher config when present, else the global
// fallback. This is the only place the teacher/global branch lives.
// PRE: none
// POST: Returns teacherCfg if non-nil, else globalCfg (possibly nil)
func ResolveConfig(teacherCfg, globalCfg *Config) *Config {
	if teacherCfg != nil {
		return teacherCfg
	}
	return globalCfg
}
