package overlay

import (
	"testing"
	"time"

	"academy/internal/domain/attendance"
)

func cellKey(date string) attendance.CellKey {
	return attendance.CellKey{StudentID: "s1", ClassName: "MathA", DateKey: date}
}

// TestCoordinator_StageCommit verifies a staged value shadows reads until
// committed.
func TestCoordinator_StageCommit(t *testing.T) {
	c := New()
	key := cellKey("2026-01-20")
	v := 2.0

	c.Stage(KindValue, key, &v)
	got, ok := c.Get(KindValue, key)
	if !ok {
		t.Fatal("staged value not visible")
	}
	if f := got.(*float64); *f != 2.0 {
		t.Errorf("staged value = %v, want 2", *f)
	}

	c.Commit(KindValue, key)
	if _, ok := c.Get(KindValue, key); ok {
		t.Error("committed entry should be cleared")
	}
}

// TestCoordinator_RollbackClears verifies rollback discards the staged
// value without touching other facets.
func TestCoordinator_RollbackClears(t *testing.T) {
	c := New()
	key := cellKey("2026-01-20")
	v := 1.0

	c.Stage(KindValue, key, &v)
	c.Stage(KindMemo, key, "note")
	c.Rollback(KindValue, key)

	if _, ok := c.Get(KindValue, key); ok {
		t.Error("rolled-back value still staged")
	}
	if _, ok := c.Get(KindMemo, key); !ok {
		t.Error("memo facet should be independent of the value rollback")
	}
}

// TestCoordinator_BeginBlocksDuplicate verifies a second mutation for the
// same roster id is dropped while the first is in flight.
func TestCoordinator_BeginBlocksDuplicate(t *testing.T) {
	c := New()

	if !c.Begin("r1") {
		t.Fatal("first Begin should succeed")
	}
	if c.Begin("r1") {
		t.Error("duplicate Begin should be dropped")
	}
	if !c.Begin("r2") {
		t.Error("different id should proceed independently")
	}

	c.End("r1")
	if !c.Begin("r1") {
		t.Error("Begin after End should succeed")
	}
}

// TestCoordinator_BeginReclaimsStale verifies a hung mutation stops
// blocking once it is older than the staleness timeout.
func TestCoordinator_BeginReclaimsStale(t *testing.T) {
	c := NewWithTimeout(90 * time.Second)
	clock := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	if !c.Begin("r1") {
		t.Fatal("first Begin should succeed")
	}

	clock = clock.Add(89 * time.Second)
	if c.Begin("r1") {
		t.Error("Begin before the timeout should still be dropped")
	}

	clock = clock.Add(2 * time.Second)
	if !c.Begin("r1") {
		t.Error("Begin after the timeout should reclaim the stale entry")
	}
}

// TestCoordinator_MergeCell verifies staged facets overlay a committed cell
// without mutating it.
func TestCoordinator_MergeCell(t *testing.T) {
	c := New()
	stored := 1.0
	cell := attendance.Cell{
		StudentID: "s1",
		ClassName: "MathA",
		DateKey:   "2026-01-20",
		Value:     &stored,
		Memo:      "old",
	}

	staged := 2.0
	c.Stage(KindValue, cell.Key(), &staged)
	c.Stage(KindHomework, cell.Key(), true)

	merged := c.MergeCell(cell)
	if *merged.Value != 2.0 {
		t.Errorf("merged value = %v, want 2", *merged.Value)
	}
	if !merged.Homework {
		t.Error("merged homework = false, want true")
	}
	if merged.Memo != "old" {
		t.Errorf("memo should be unchanged, got %q", merged.Memo)
	}
	if *cell.Value != 1.0 {
		t.Error("input cell must not be mutated")
	}
}
