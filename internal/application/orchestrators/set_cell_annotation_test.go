package orchestrators

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"academy/internal/domain/attendance"
)

// mockAnnotationStore implements AnnotationStore. SaveAnnotations copies
// only the annotation facets, matching the storage contract.
type mockAnnotationStore struct {
	cells map[attendance.CellKey]attendance.Cell
}

func newMockAnnotationStore() *mockAnnotationStore {
	return &mockAnnotationStore{cells: make(map[attendance.CellKey]attendance.Cell)}
}

func (m *mockAnnotationStore) GetCell(_ context.Context, key attendance.CellKey) (attendance.Cell, error) {
	c, ok := m.cells[key]
	if !ok {
		return attendance.Cell{}, fmt.Errorf("ledger cell not found: %w", sql.ErrNoRows)
	}
	return c, nil
}

func (m *mockAnnotationStore) SaveAnnotations(_ context.Context, cell attendance.Cell) error {
	key := cell.Key()
	stored, ok := m.cells[key]
	if !ok {
		stored = attendance.Cell{StudentID: cell.StudentID, ClassName: cell.ClassName, DateKey: cell.DateKey}
	}
	stored.Memo = cell.Memo
	stored.Homework = cell.Homework
	stored.CellColor = cell.CellColor
	stored.UpdatedAt = cell.UpdatedAt
	m.cells[key] = stored
	return nil
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestExecuteSetCellAnnotation_FreshCell(t *testing.T) {
	store := newMockAnnotationStore()
	deps := SetCellAnnotationDeps{
		Store: store,
		Now:   func() time.Time { return time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC) },
	}

	err := ExecuteSetCellAnnotation(context.Background(), SetCellAnnotationInput{
		StudentID: "s1",
		ClassName: "MathA",
		DateKey:   "2026-01-20",
		Memo:      strPtr("forgot workbook"),
	}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cell := store.cells[attendance.CellKey{StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20"}]
	if cell.Memo != "forgot workbook" {
		t.Errorf("memo = %q", cell.Memo)
	}
	if cell.Value != nil {
		t.Error("annotation on a fresh cell must not set a value")
	}
}

func TestExecuteSetCellAnnotation_FacetsIndependent(t *testing.T) {
	store := newMockAnnotationStore()
	deps := SetCellAnnotationDeps{Store: store}
	key := attendance.CellKey{StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20"}

	input := SetCellAnnotationInput{
		StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20",
		Memo: strPtr("good focus"), CellColor: strPtr("#fde68a"),
	}
	if err := ExecuteSetCellAnnotation(context.Background(), input, deps); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// Toggling homework alone leaves the memo and color in place.
	err := ExecuteSetCellAnnotation(context.Background(), SetCellAnnotationInput{
		StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20",
		Homework: boolPtr(true),
	}, deps)
	if err != nil {
		t.Fatalf("homework toggle: %v", err)
	}

	cell := store.cells[key]
	if !cell.Homework {
		t.Error("homework not set")
	}
	if cell.Memo != "good focus" || cell.CellColor != "#fde68a" {
		t.Errorf("earlier facets clobbered: %+v", cell)
	}

	// Clearing a facet is an explicit empty value, not nil.
	err = ExecuteSetCellAnnotation(context.Background(), SetCellAnnotationInput{
		StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20",
		Memo: strPtr(""),
	}, deps)
	if err != nil {
		t.Fatalf("memo clear: %v", err)
	}
	cell = store.cells[key]
	if cell.Memo != "" {
		t.Errorf("memo = %q, want cleared", cell.Memo)
	}
	if !cell.Homework || cell.CellColor != "#fde68a" {
		t.Error("clearing the memo must not touch other facets")
	}
}

func TestExecuteSetCellAnnotation_NoFields(t *testing.T) {
	store := newMockAnnotationStore()
	err := ExecuteSetCellAnnotation(context.Background(), SetCellAnnotationInput{
		StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20",
	}, SetCellAnnotationDeps{Store: store})
	if err == nil {
		t.Fatal("expected error for empty annotation input")
	}
	if len(store.cells) != 0 {
		t.Error("nothing may be written for an empty input")
	}
}

func TestExecuteSetCellAnnotation_BadKey(t *testing.T) {
	err := ExecuteSetCellAnnotation(context.Background(), SetCellAnnotationInput{
		StudentID: "s1", ClassName: "MathA", DateKey: "Jan 20",
		Memo: strPtr("x"),
	}, SetCellAnnotationDeps{Store: newMockAnnotationStore()})
	if err == nil {
		t.Fatal("expected error for malformed date key")
	}
}
