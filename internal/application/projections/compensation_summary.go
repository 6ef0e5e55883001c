package projections

import (
	"context"
	"math"
	"time"

	domain "academy/internal/domain/attendance"
	"academy/internal/domain/compensation"
	studentDomain "academy/internal/domain/student"
)

// RowSummary is one expanded row's contribution to the month's totals.
type RowSummary struct {
	StudentID   string
	StudentName string
	Group       string

	SessionUnits   float64
	PresentCount   int
	ScheduledCount int
	SessionRate    int
	Compensation   int

	// RateUnset marks rows with no resolvable rate policy item. The row
	// contributes zero pay; this is a badge, not an error.
	RateUnset bool

	IsNew       bool
	IsDeparting bool
}

// CompensationSummary is the month's aggregate over all visible rows.
type CompensationSummary struct {
	Month string

	TotalCompensation int
	PresentCount      int
	ScheduledCount    int

	NewCount       int
	DepartingCount int
	NewRows        []RowSummary
	DepartingRows  []RowSummary

	AttendanceRatePercent float64
	ChurnRatePercent      float64

	Rows []RowSummary
}

// CompensationSummaryQuery carries query parameters.
type CompensationSummaryQuery struct {
	Month      string    // YYYY-MM
	Cutoff     time.Time // "today": scheduled days after this are not counted
	GroupOrder []string
}

// CompensationSummaryDeps holds dependencies for CompensationSummary.
type CompensationSummaryDeps struct {
	StudentStore RowStudentStore
	CellStore    RowCellStore

	// Config is the effective compensation config for the teacher-month:
	// the frozen snapshot of a finalized settlement, else the live config.
	// Callers select it via settlement.EffectiveConfig; nil means every row
	// resolves to a zero rate.
	Config *compensation.Config
}

// QueryCompensationSummary computes the month's compensation and
// participation totals from the expanded rows.
// PRE: Month is YYYY-MM
// POST: Deterministic for identical inputs; never errors on missing rate
// policy items (zero rate, RateUnset badge)
func QueryCompensationSummary(ctx context.Context, query CompensationSummaryQuery, deps CompensationSummaryDeps) (CompensationSummary, error) {
	students, err := deps.StudentStore.List(ctx)
	if err != nil {
		return CompensationSummary{}, err
	}

	expanded, err := QueryExpandRows(ctx, ExpandRowsQuery{Month: query.Month, GroupOrder: query.GroupOrder}, ExpandRowsDeps{
		StudentStore: deps.StudentStore,
		CellStore:    deps.CellStore,
	})
	if err != nil {
		return CompensationSummary{}, err
	}

	return SummarizeCompensation(students, expanded.Rows, deps.Config, query.Month, query.Cutoff), nil
}

// SummarizeCompensation is the pure aggregation core. Departures are counted
// against the full student set, not just the visible rows, so a student whose
// record was otherwise filtered still counts toward churn.
// PRE: month is YYYY-MM; rows were expanded for the same month
// POST: Pure function of its inputs; no I/O
func SummarizeCompensation(students []studentDomain.Student, rows []ExpandedRow, cfg *compensation.Config, month string, cutoff time.Time) CompensationSummary {
	out := CompensationSummary{Month: month}

	departingTotal := 0
	for i := range students {
		for j := range students[i].Enrollments {
			e := &students[i].Enrollments[j]
			if !e.OpenEnded() && e.EndDate.Format(domain.MonthFormat) == month {
				departingTotal++
			}
		}
	}

	feePercent := 0.0
	if cfg != nil {
		feePercent = cfg.FeePercent
	}

	for _, row := range rows {
		rs := RowSummary{
			StudentID:   row.StudentID,
			StudentName: row.StudentName,
			Group:       row.Group,
		}

		rs.IsNew = row.Enrollment.StartDate.Format(domain.MonthFormat) == month
		rs.IsDeparting = !row.Enrollment.OpenEnded() &&
			row.Enrollment.EndDate.Format(domain.MonthFormat) == month

		item := resolveRateItem(cfg, row)
		if item == nil {
			rs.RateUnset = true
		}
		rs.SessionRate = compensation.SessionRate(item, feePercent)

		for _, cell := range row.Cells {
			if cell.Attended() {
				rs.SessionUnits += cell.SessionUnits()
				rs.PresentCount++
			}
		}
		rs.Compensation = int(math.Round(rs.SessionUnits * float64(rs.SessionRate)))

		rs.ScheduledCount = scheduledOccurrences(row, month, cutoff)

		out.TotalCompensation += rs.Compensation
		out.PresentCount += rs.PresentCount
		out.ScheduledCount += rs.ScheduledCount
		if rs.IsNew {
			out.NewCount++
			out.NewRows = append(out.NewRows, rs)
		}
		if rs.IsDeparting {
			out.DepartingRows = append(out.DepartingRows, rs)
		}
		out.Rows = append(out.Rows, rs)
	}
	out.DepartingCount = departingTotal

	// Make-up sessions can push presents past the schedule; the rate caps
	// at 100%, never above.
	denom := out.ScheduledCount
	if out.PresentCount > denom {
		denom = out.PresentCount
	}
	if denom > 0 {
		out.AttendanceRatePercent = float64(out.PresentCount) / float64(denom) * 100
	}

	estimatedPriorTotal := len(rows) - out.NewCount + out.DepartingCount
	switch {
	case estimatedPriorTotal > 0:
		out.ChurnRatePercent = float64(out.DepartingCount) / float64(estimatedPriorTotal) * 100
	case out.NewCount > 0:
		out.ChurnRatePercent = 100
	default:
		out.ChurnRatePercent = 0
	}

	return out
}

// resolveRateItem resolves a row's rate policy item: the enrollment's
// explicit override first, then the student's default, then a config item
// named after the class itself.
func resolveRateItem(cfg *compensation.Config, row ExpandedRow) *compensation.RatePolicyItem {
	if cfg == nil {
		return nil
	}
	if item := cfg.ItemByName(row.Enrollment.RateItemName); item != nil {
		return item
	}
	if item := cfg.ItemByName(row.DefaultRateItemName); item != nil {
		return item
	}
	return cfg.ItemByName(row.Group)
}

// scheduledOccurrences counts the calendar days in the month, up to and
// including the cutoff, that fall inside the row's validity window on a
// scheduled weekday.
func scheduledOccurrences(row ExpandedRow, month string, cutoff time.Time) int {
	start, err := time.Parse(domain.MonthFormat, month)
	if err != nil {
		return 0
	}
	scheduled := make(map[time.Weekday]bool)
	for _, day := range row.ScheduledWeekdays {
		if wd, ok := studentDomain.ParseWeekday(day); ok {
			scheduled[wd] = true
		}
	}

	count := 0
	cutoffDay := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
		if d.After(cutoffDay) {
			break
		}
		if !row.Enrollment.WindowContains(d) {
			continue
		}
		if scheduled[d.Weekday()] {
			count++
		}
	}
	return count
}
