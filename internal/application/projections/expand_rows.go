package projections

import (
	"context"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	domain "academy/internal/domain/attendance"
	studentDomain "academy/internal/domain/student"
)

// RowStudentStore is the student surface row expansion needs.
type RowStudentStore interface {
	List(ctx context.Context) ([]studentDomain.Student, error)
}

// RowCellStore is the ledger surface row expansion needs.
type RowCellStore interface {
	ListCellsByStudentMonth(ctx context.Context, studentID string, month string) ([]domain.Cell, error)
}

// ExpandedRow is one student-enrollment pair for the reporting month. A
// student with N enrollments expands into N independent rows; each carries
// only the cells scoped to its own class and validity window.
type ExpandedRow struct {
	StudentID   string
	StudentName string
	School      string
	Grade       string

	Group      string // the expanded enrollment's class name
	Enrollment studentDomain.Enrollment

	// DefaultRateItemName carries the owning student's default rate item so
	// rate resolution needs no second student lookup.
	DefaultRateItemName string

	// ScheduledWeekdays holds the enrollment's class days as canonical
	// three-letter names, Sunday-first.
	ScheduledWeekdays []string

	// Cells holds this enrollment's ledger cells keyed by date, restricted
	// to dates inside the enrollment's own validity window.
	Cells map[string]domain.Cell
}

// ExpandRowsQuery carries query parameters.
type ExpandRowsQuery struct {
	Month      string   // YYYY-MM
	GroupOrder []string // persisted display order of class groups
}

// ExpandRowsResult carries the query result.
type ExpandRowsResult struct {
	Rows []ExpandedRow
}

// ExpandRowsDeps holds dependencies for ExpandRows.
type ExpandRowsDeps struct {
	StudentStore RowStudentStore
	CellStore    RowCellStore
}

// QueryExpandRows expands each visible student into one row per enrollment.
// PRE: Month is YYYY-MM
// POST: Students with no enrollment window intersecting the month are
// dropped; cells outside a row's own validity window never appear
// INVARIANT: Deterministic — identical inputs yield structurally identical
// row lists
func QueryExpandRows(ctx context.Context, query ExpandRowsQuery, deps ExpandRowsDeps) (ExpandRowsResult, error) {
	firstKey, lastKey, err := domain.MonthBounds(query.Month)
	if err != nil {
		return ExpandRowsResult{}, err
	}
	from, _ := time.Parse(domain.DateFormat, firstKey)
	to, _ := time.Parse(domain.DateFormat, lastKey)

	students, err := deps.StudentStore.List(ctx)
	if err != nil {
		return ExpandRowsResult{}, err
	}

	var rows []ExpandedRow
	for _, st := range students {
		if !st.VisibleIn(from, to) {
			continue
		}

		cells, err := deps.CellStore.ListCellsByStudentMonth(ctx, st.ID, query.Month)
		if err != nil {
			return ExpandRowsResult{}, err
		}

		for _, enr := range st.Enrollments {
			if !enr.IntersectsRange(from, to) {
				continue
			}
			rows = append(rows, expandOne(st, enr, cells))
		}
	}

	sortRows(rows, query.GroupOrder)
	return ExpandRowsResult{Rows: rows}, nil
}

// expandOne builds the row for one student-enrollment pair, filtering the
// student's month cells down to this enrollment's class and window.
func expandOne(st studentDomain.Student, enr studentDomain.Enrollment, cells []domain.Cell) ExpandedRow {
	row := ExpandedRow{
		StudentID:           st.ID,
		StudentName:         st.Name,
		School:              st.School,
		Grade:               st.Grade,
		Group:               enr.ClassName,
		Enrollment:          enr,
		DefaultRateItemName: st.DefaultRateItemName,
		ScheduledWeekdays:   scheduledWeekdays(enr),
		Cells:               make(map[string]domain.Cell),
	}
	for _, c := range cells {
		if c.ClassName != enr.ClassName {
			continue
		}
		d, err := time.Parse(domain.DateFormat, c.DateKey)
		if err != nil || !enr.WindowContains(d) {
			continue
		}
		row.Cells[c.DateKey] = c
	}
	return row
}

// scheduledWeekdays renders the enrollment's schedule as canonical
// three-letter weekday names. Token parsing lives in the student domain so
// slot spellings like "MON 16:00" or "tues" resolve the same way here as
// everywhere else.
func scheduledWeekdays(enr studentDomain.Enrollment) []string {
	days := enr.ScheduledWeekdays()
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String()[:3])
	}
	return out
}

// sortRows orders rows by group display order, then unlisted groups
// alphabetically, then groupless rows last; names break ties, stably.
// Names compare under Korean collation so Hangul rosters read in dictionary
// order.
func sortRows(rows []ExpandedRow, groupOrder []string) {
	orderIndex := make(map[string]int, len(groupOrder))
	for i, g := range groupOrder {
		if _, ok := orderIndex[g]; !ok {
			orderIndex[g] = i
		}
	}
	coll := collate.New(language.Korean)

	rank := func(r ExpandedRow) (tier int, idx int) {
		if r.Group == "" {
			return 2, 0
		}
		if i, ok := orderIndex[r.Group]; ok {
			return 0, i
		}
		return 1, 0
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ti, oi := rank(rows[i])
		tj, oj := rank(rows[j])
		if ti != tj {
			return ti < tj
		}
		if ti == 0 && oi != oj {
			return oi < oj
		}
		if ti == 1 && rows[i].Group != rows[j].Group {
			return rows[i].Group < rows[j].Group
		}
		return coll.CompareString(rows[i].StudentName, rows[j].StudentName) < 0
	})
}
