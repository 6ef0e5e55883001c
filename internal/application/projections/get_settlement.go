package projections

import (
	"context"
	"time"

	"academy/internal/domain/compensation"
	settlementDomain "academy/internal/domain/settlement"
)

// SettlementReadStore is the settlement surface the read side needs. Get
// returns nil when no row exists yet; the projection creates it lazily.
type SettlementReadStore interface {
	Get(ctx context.Context, teacherID string, month string) (*settlementDomain.Monthly, error)
	Save(ctx context.Context, m settlementDomain.Monthly) error
}

// ConfigReadStore resolves the live compensation config.
type ConfigReadStore interface {
	GetGlobal(ctx context.Context) (*compensation.Config, error)
	GetByTeacher(ctx context.Context, teacherID string) (*compensation.Config, error)
}

// GetSettlementQuery carries query parameters.
type GetSettlementQuery struct {
	TeacherID  string
	Month      string    // YYYY-MM
	Cutoff     time.Time // forwarded to the compensation summary
	GroupOrder []string
}

// GetSettlementResult carries the settlement, the month's summary computed
// with the config the settlement mandates, and the final payout.
type GetSettlementResult struct {
	Settlement settlementDomain.Monthly
	Summary    CompensationSummary

	// ConfigFrozen reports which config source the totals used.
	ConfigFrozen bool

	BlogBonusAmount      int
	RetentionBonusAmount int
	RetentionTargetMet   bool

	// FinalTotal = session compensation + granted bonuses + manual amount.
	FinalTotal int
}

// GetSettlementDeps holds dependencies for GetSettlement.
type GetSettlementDeps struct {
	SettlementStore SettlementReadStore
	ConfigStore     ConfigReadStore
	StudentStore    RowStudentStore
	CellStore       RowCellStore
}

// QueryGetSettlement loads (or lazily creates) the teacher-month settlement
// and computes its totals. The config source branches exactly once, through
// the settlement's EffectiveConfig: the frozen snapshot when finalized, the
// live config otherwise.
// PRE: TeacherID is non-empty, Month is YYYY-MM
// POST: A settlement row exists for the teacher-month; totals of a finalized
// month are immune to later live config edits
func QueryGetSettlement(ctx context.Context, query GetSettlementQuery, deps GetSettlementDeps) (GetSettlementResult, error) {
	m, err := deps.SettlementStore.Get(ctx, query.TeacherID, query.Month)
	if err != nil {
		return GetSettlementResult{}, err
	}
	if m == nil {
		fresh := settlementDomain.Monthly{TeacherID: query.TeacherID, Month: query.Month}
		if err := deps.SettlementStore.Save(ctx, fresh); err != nil {
			return GetSettlementResult{}, err
		}
		m = &fresh
	}

	teacherCfg, err := deps.ConfigStore.GetByTeacher(ctx, query.TeacherID)
	if err != nil {
		return GetSettlementResult{}, err
	}
	globalCfg, err := deps.ConfigStore.GetGlobal(ctx)
	if err != nil {
		return GetSettlementResult{}, err
	}
	live := compensation.ResolveConfig(teacherCfg, globalCfg)
	effective := m.EffectiveConfig(live)

	summary, err := QueryCompensationSummary(ctx, CompensationSummaryQuery{
		Month:      query.Month,
		Cutoff:     query.Cutoff,
		GroupOrder: query.GroupOrder,
	}, CompensationSummaryDeps{
		StudentStore: deps.StudentStore,
		CellStore:    deps.CellStore,
		Config:       effective,
	})
	if err != nil {
		return GetSettlementResult{}, err
	}

	result := GetSettlementResult{
		Settlement:   *m,
		Summary:      summary,
		ConfigFrozen: m.IsFinalized && m.FrozenConfig != nil,
	}

	if effective != nil {
		result.RetentionTargetMet = summary.AttendanceRatePercent >= effective.Incentives.RetentionTargetRate
		if m.HasBlogBonus {
			result.BlogBonusAmount = effective.Incentives.BlogBonus
		}
		if m.HasRetentionBonus {
			result.RetentionBonusAmount = effective.Incentives.RetentionBonus
		}
	}
	result.FinalTotal = summary.TotalCompensation +
		result.BlogBonusAmount + result.RetentionBonusAmount + m.OtherAmount

	return result, nil
}
