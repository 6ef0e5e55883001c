package attendance

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/attendance"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteStore(db)
}

func floatPtr(v float64) *float64 { return &v }

func testChange(id string) (domain.Cell, domain.RosterRecord, domain.HistoryEntry) {
	now := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)
	cell := domain.Cell{
		StudentID: "s1",
		ClassName: "MathA",
		DateKey:   "2026-01-20",
		Value:     floatPtr(2),
		UpdatedAt: now,
	}
	rec := domain.RosterRecord{
		ID:        "r-" + id,
		ClassDate: "2026-01-20",
		StudentID: "s1",
		ClassID:   "c-math",
		ClassName: "MathA",
		Status:    domain.StatusLate,
		UpdatedBy: "teacher-1",
		UpdatedAt: now,
	}
	entry := domain.HistoryEntry{
		ID:        "h-" + id,
		ClassDate: "2026-01-20",
		StudentID: "s1",
		ClassID:   "c-math",
		NewStatus: domain.StatusLate,
		ChangedBy: "teacher-1",
		CreatedAt: now,
	}
	return cell, rec, entry
}

// TestSyncStatusChange_CommitsAllThree verifies a successful sync lands in
// the ledger, the roster and the history together.
func TestSyncStatusChange_CommitsAllThree(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cell, rec, entry := testChange("1")
	if err := store.SyncStatusChange(ctx, cell, rec, entry); err != nil {
		t.Fatalf("SyncStatusChange: %v", err)
	}

	got, err := store.GetCell(ctx, cell.Key())
	if err != nil {
		t.Fatalf("GetCell: %v", err)
	}
	if got.Value == nil || *got.Value != 2 {
		t.Errorf("cell value = %v, want 2", got.Value)
	}

	gotRec, err := store.GetRosterRecord(ctx, "2026-01-20", "s1", "c-math")
	if err != nil {
		t.Fatalf("GetRosterRecord: %v", err)
	}
	if gotRec.Status != domain.StatusLate {
		t.Errorf("roster status = %q, want late", gotRec.Status)
	}

	history, err := store.ListHistoryByStudent(ctx, "s1", "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("ListHistoryByStudent: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
	if history[0].PreviousStatus != nil {
		t.Errorf("first change should have nil previous status, got %v", *history[0].PreviousStatus)
	}
}

// TestSyncStatusChange_RollsBackTogether verifies that a failed history
// insert leaves neither the ledger nor the roster modified.
func TestSyncStatusChange_RollsBackTogether(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cell, rec, entry := testChange("1")
	if err := store.SyncStatusChange(ctx, cell, rec, entry); err != nil {
		t.Fatalf("first SyncStatusChange: %v", err)
	}

	// Second change reuses the history id: the history insert violates the
	// primary key and the whole transaction must roll back.
	cell2, rec2, entry2 := testChange("2")
	cell2.Value = floatPtr(1)
	rec2.Status = domain.StatusPresent
	entry2.ID = entry.ID

	if err := store.SyncStatusChange(ctx, cell2, rec2, entry2); err == nil {
		t.Fatal("expected error from duplicate history id, got nil")
	}

	got, err := store.GetCell(ctx, cell.Key())
	if err != nil {
		t.Fatalf("GetCell: %v", err)
	}
	if got.Value == nil || *got.Value != 2 {
		t.Errorf("cell value = %v, want 2 (rolled back)", got.Value)
	}

	gotRec, err := store.GetRosterRecord(ctx, "2026-01-20", "s1", "c-math")
	if err != nil {
		t.Fatalf("GetRosterRecord: %v", err)
	}
	if gotRec.Status != domain.StatusLate {
		t.Errorf("roster status = %q, want late (rolled back)", gotRec.Status)
	}

	history, err := store.ListHistoryByStudent(ctx, "s1", "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("ListHistoryByStudent: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history entries = %d, want 1 (rolled back)", len(history))
	}
}

// TestSyncStatusChange_PreservesAnnotations verifies a status sync does not
// clobber annotations written earlier on the same cell.
func TestSyncStatusChange_PreservesAnnotations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	if err := store.SaveAnnotations(ctx, domain.Cell{
		StudentID: "s1",
		ClassName: "MathA",
		DateKey:   "2026-01-20",
		Memo:      "brought workbook",
		Homework:  true,
		CellColor: "#ffe4b5",
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("SaveAnnotations: %v", err)
	}

	cell, rec, entry := testChange("1")
	if err := store.SyncStatusChange(ctx, cell, rec, entry); err != nil {
		t.Fatalf("SyncStatusChange: %v", err)
	}

	got, err := store.GetCell(ctx, cell.Key())
	if err != nil {
		t.Fatalf("GetCell: %v", err)
	}
	if got.Memo != "brought workbook" || !got.Homework || got.CellColor != "#ffe4b5" {
		t.Errorf("annotations clobbered: %+v", got)
	}
	if got.Value == nil || *got.Value != 2 {
		t.Errorf("cell value = %v, want 2", got.Value)
	}
}

// TestSaveAnnotations_OnEmptyCell verifies annotations can exist on a cell
// with no status value.
func TestSaveAnnotations_OnEmptyCell(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveAnnotations(ctx, domain.Cell{
		StudentID: "s1",
		ClassName: "MathA",
		DateKey:   "2026-01-21",
		Memo:      "absent note pending",
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("SaveAnnotations: %v", err)
	}

	got, err := store.GetCell(ctx, domain.CellKey{StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-21"})
	if err != nil {
		t.Fatalf("GetCell: %v", err)
	}
	if got.Value != nil {
		t.Errorf("value = %v, want nil", got.Value)
	}
	if got.Memo != "absent note pending" {
		t.Errorf("memo = %q", got.Memo)
	}
}

// TestListCellsByStudentMonth verifies month scoping of the ledger.
func TestListCellsByStudentMonth(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, dk := range []string{"2026-01-05", "2026-01-20", "2026-02-02"} {
		if err := store.SaveCell(ctx, domain.Cell{
			StudentID: "s1", ClassName: "MathA", DateKey: dk,
			Value: floatPtr(1), UpdatedAt: now,
		}); err != nil {
			t.Fatalf("SaveCell %s: %v", dk, err)
		}
	}

	cells, err := store.ListCellsByStudentMonth(ctx, "s1", "2026-01")
	if err != nil {
		t.Fatalf("ListCellsByStudentMonth: %v", err)
	}
	if len(cells) != 2 {
		t.Errorf("cells in 2026-01 = %d, want 2", len(cells))
	}
}
