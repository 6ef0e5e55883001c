package projections

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"academy/internal/application/overlay"
	domain "academy/internal/domain/attendance"
	holidayDomain "academy/internal/domain/holiday"
)

// GridHolidayStore is the holiday surface the grid needs.
type GridHolidayStore interface {
	ListOverlapping(ctx context.Context, fromKey string, toKey string) ([]holidayDomain.Holiday, error)
}

// ExamScoreProvider supplies exam scores for display overlays. Read-only;
// compensation math never consumes it.
type ExamScoreProvider interface {
	Scores(ctx context.Context, studentID string, month string) (map[string]float64, error)
}

// memoRenderer is a goldmark instance configured for safe HTML output of
// cell memos.
var memoRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// GridCell is one displayed cell: the committed cell with any staged
// overlay facets applied, plus the derived status and rendered memo.
type GridCell struct {
	DateKey   string
	Value     *float64
	Status    domain.Status
	Memo      string
	MemoHTML  string
	Homework  bool
	CellColor string
}

// GridRow is one expanded row with its display cells.
type GridRow struct {
	ExpandedRow
	DisplayCells map[string]GridCell

	// ExamScores overlays per-date exam scores when a provider is wired.
	ExamScores map[string]float64
}

// AttendanceGridQuery carries query parameters.
type AttendanceGridQuery struct {
	Month      string // YYYY-MM
	GroupOrder []string
}

// AttendanceGridResult carries the query result.
type AttendanceGridResult struct {
	Month string
	Rows  []GridRow

	// Holidays maps in-month holiday date keys to the holiday name.
	Holidays map[string]string
}

// AttendanceGridDeps holds dependencies for AttendanceGrid.
type AttendanceGridDeps struct {
	StudentStore RowStudentStore
	CellStore    RowCellStore
	HolidayStore GridHolidayStore

	// Overlay merges staged optimistic values over committed cells; nil
	// renders committed values only.
	Overlay *overlay.Coordinator

	// ExamScores is optional; nil omits the score overlay.
	ExamScores ExamScoreProvider
}

// QueryAttendanceGrid builds the month's display grid: expanded rows with
// committed cells, staged overlay values merged on top, memos rendered as
// HTML, plus the holiday overlay.
// PRE: Month is YYYY-MM
// POST: Staged-but-uncommitted edits are visible; committed storage is not
// mutated
func QueryAttendanceGrid(ctx context.Context, query AttendanceGridQuery, deps AttendanceGridDeps) (AttendanceGridResult, error) {
	firstKey, lastKey, err := domain.MonthBounds(query.Month)
	if err != nil {
		return AttendanceGridResult{}, err
	}

	expanded, err := QueryExpandRows(ctx, ExpandRowsQuery{Month: query.Month, GroupOrder: query.GroupOrder}, ExpandRowsDeps{
		StudentStore: deps.StudentStore,
		CellStore:    deps.CellStore,
	})
	if err != nil {
		return AttendanceGridResult{}, err
	}

	result := AttendanceGridResult{
		Month:    query.Month,
		Holidays: make(map[string]string),
	}

	if deps.HolidayStore != nil {
		holidays, err := deps.HolidayStore.ListOverlapping(ctx, firstKey, lastKey)
		if err != nil {
			return AttendanceGridResult{}, err
		}
		for _, h := range holidays {
			for _, key := range h.KeysIn(firstKey, lastKey) {
				result.Holidays[key] = h.Name
			}
		}
	}

	for _, row := range expanded.Rows {
		gr := GridRow{
			ExpandedRow:  row,
			DisplayCells: make(map[string]GridCell, len(row.Cells)),
		}
		for dateKey, cell := range row.Cells {
			if deps.Overlay != nil {
				cell = deps.Overlay.MergeCell(cell)
			}
			gr.DisplayCells[dateKey] = toGridCell(cell)
		}
		// Staged values may exist for dates with no committed cell yet.
		if deps.Overlay != nil {
			mergeStagedOnly(&gr, deps.Overlay, row, firstKey, lastKey)
		}

		if deps.ExamScores != nil {
			scores, err := deps.ExamScores.Scores(ctx, row.StudentID, query.Month)
			if err != nil {
				slog.Warn("exam_score_overlay_failed", "student_id", row.StudentID, "error", err.Error())
			} else {
				gr.ExamScores = scores
			}
		}

		result.Rows = append(result.Rows, gr)
	}

	return result, nil
}

// mergeStagedOnly surfaces staged edits on dates that have no committed
// cell, so a brand-new edit shows before its first commit.
func mergeStagedOnly(gr *GridRow, ov *overlay.Coordinator, row ExpandedRow, firstKey, lastKey string) {
	for key := range ov.Snapshot(overlay.KindValue) {
		if key.StudentID != row.StudentID || key.ClassName != row.Group {
			continue
		}
		if key.DateKey < firstKey || key.DateKey > lastKey {
			continue
		}
		if _, ok := gr.DisplayCells[key.DateKey]; ok {
			continue
		}
		d, err := time.Parse(domain.DateFormat, key.DateKey)
		if err != nil || !row.Enrollment.WindowContains(d) {
			continue
		}
		cell := ov.MergeCell(domain.Cell{
			StudentID: key.StudentID,
			ClassName: key.ClassName,
			DateKey:   key.DateKey,
		})
		gr.DisplayCells[key.DateKey] = toGridCell(cell)
	}
}

// toGridCell derives the display cell: status via the codec, memo rendered
// as HTML.
func toGridCell(cell domain.Cell) GridCell {
	gc := GridCell{
		DateKey:   cell.DateKey,
		Value:     cell.Value,
		Status:    domain.StatusFromValue(cell.Value),
		Memo:      cell.Memo,
		Homework:  cell.Homework,
		CellColor: cell.CellColor,
	}
	if cell.Memo != "" {
		var buf bytes.Buffer
		if err := memoRenderer.Convert([]byte(cell.Memo), &buf); err == nil {
			gc.MemoHTML = buf.String()
		}
	}
	return gc
}
