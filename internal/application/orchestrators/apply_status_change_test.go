package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"academy/internal/domain/attendance"
	"academy/internal/domain/outbox"
	"academy/internal/domain/student"
)

// mockSyncStore implements AttendanceSyncStore for testing.
type mockSyncStore struct {
	roster  map[string]attendance.RosterRecord // keyed date|student|class
	cells   map[attendance.CellKey]attendance.Cell
	history []attendance.HistoryEntry
	failTx  bool
}

func newMockSyncStore() *mockSyncStore {
	return &mockSyncStore{
		roster: make(map[string]attendance.RosterRecord),
		cells:  make(map[attendance.CellKey]attendance.Cell),
	}
}

func rosterKey(date, studentID, classID string) string {
	return date + "|" + studentID + "|" + classID
}

func (m *mockSyncStore) GetRosterRecord(_ context.Context, classDate, studentID, classID string) (attendance.RosterRecord, error) {
	rec, ok := m.roster[rosterKey(classDate, studentID, classID)]
	if !ok {
		return attendance.RosterRecord{}, fmt.Errorf("roster record not found: %w", sql.ErrNoRows)
	}
	return rec, nil
}

func (m *mockSyncStore) SyncStatusChange(_ context.Context, cell attendance.Cell, rec attendance.RosterRecord, entry attendance.HistoryEntry) error {
	if m.failTx {
		return errors.New("transaction rejected")
	}
	m.cells[cell.Key()] = cell
	m.roster[rosterKey(rec.ClassDate, rec.StudentID, rec.ClassID)] = rec
	m.history = append(m.history, entry)
	return nil
}

// mockStudentStore implements StatusChangeStudentStore.
type mockStudentStore struct {
	students map[string]student.Student
}

func (m *mockStudentStore) GetByID(_ context.Context, id string) (student.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return student.Student{}, errors.New("not found")
	}
	return s, nil
}

// mockOutbox implements OutboxEnqueuer.
type mockOutbox struct {
	entries []outbox.Entry
}

func (m *mockOutbox) Save(_ context.Context, e outbox.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func seededStudent() student.Student {
	return student.Student{
		ID:   "s1",
		Name: "Jiwoo Park",
		Enrollments: []student.Enrollment{
			{
				ClassName: "MathA",
				Slots:     []string{"Tue 16:00", "Thu 16:00"},
				StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			{
				ClassName: "EnglishB",
				Slots:     []string{"Mon 17:00"},
				StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func statusChangeDeps(sync *mockSyncStore, ob *mockOutbox) ApplyStatusChangeDeps {
	seq := 0
	deps := ApplyStatusChangeDeps{
		StudentStore: &mockStudentStore{students: map[string]student.Student{"s1": seededStudent()}},
		SyncStore:    sync,
		Now:          func() time.Time { return time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	}
	// Assign only a non-nil mock so a nil *mockOutbox stays a nil interface.
	if ob != nil {
		deps.Outbox = ob
	}
	return deps
}

// TestExecuteApplyStatusChange_FirstChange verifies the first status change
// for a date creates all three records with a nil previous status.
func TestExecuteApplyStatusChange_FirstChange(t *testing.T) {
	sync := newMockSyncStore()
	ob := &mockOutbox{}

	result, err := ExecuteApplyStatusChange(context.Background(), ApplyStatusChangeInput{
		StudentID: "s1",
		ClassID:   "c-math",
		ClassName: "MathA",
		DateKey:   "2026-01-20",
		NewStatus: attendance.StatusLate,
		ChangedBy: "teacher-1",
	}, statusChangeDeps(sync, ob))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.PreviousStatus != nil {
		t.Errorf("previous status = %v, want nil", *result.PreviousStatus)
	}

	cell := sync.cells[attendance.CellKey{StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20"}]
	if cell.Value == nil || *cell.Value != 2 {
		t.Errorf("ledger value = %v, want 2 (late)", cell.Value)
	}

	rec := sync.roster[rosterKey("2026-01-20", "s1", "c-math")]
	if rec.Status != attendance.StatusLate {
		t.Errorf("roster status = %q, want late", rec.Status)
	}
	if rec.StudentName != "Jiwoo Park" {
		t.Errorf("roster student name = %q", rec.StudentName)
	}

	if len(sync.history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(sync.history))
	}
	if sync.history[0].PreviousStatus != nil {
		t.Error("history previous status should be nil on first change")
	}
	if sync.history[0].NewStatus != attendance.StatusLate {
		t.Errorf("history new status = %q, want late", sync.history[0].NewStatus)
	}

	wantKeys := []string{"roster:2026-01-20", "ledger:s1:2026-01"}
	if len(result.InvalidationKeys) != 2 || result.InvalidationKeys[0] != wantKeys[0] || result.InvalidationKeys[1] != wantKeys[1] {
		t.Errorf("invalidation keys = %v, want %v", result.InvalidationKeys, wantKeys)
	}

	if len(ob.entries) != 1 || ob.entries[0].ActionType != outbox.ActionTypeRosterMirror {
		t.Errorf("expected one roster mirror outbox entry, got %+v", ob.entries)
	}
}

// TestExecuteApplyStatusChange_SecondChange verifies the previous status is
// carried into history and the roster id is reused.
func TestExecuteApplyStatusChange_SecondChange(t *testing.T) {
	sync := newMockSyncStore()
	deps := statusChangeDeps(sync, nil)

	input := ApplyStatusChangeInput{
		StudentID: "s1",
		ClassID:   "c-math",
		ClassName: "MathA",
		DateKey:   "2026-01-20",
		NewStatus: attendance.StatusLate,
		ChangedBy: "teacher-1",
	}
	first, err := ExecuteApplyStatusChange(context.Background(), input, deps)
	if err != nil {
		t.Fatalf("first change: %v", err)
	}

	input.NewStatus = attendance.StatusPresent
	second, err := ExecuteApplyStatusChange(context.Background(), input, deps)
	if err != nil {
		t.Fatalf("second change: %v", err)
	}

	if second.RosterRecordID != first.RosterRecordID {
		t.Errorf("roster id changed across updates: %q -> %q", first.RosterRecordID, second.RosterRecordID)
	}
	if second.PreviousStatus == nil || *second.PreviousStatus != attendance.StatusLate {
		t.Errorf("previous status = %v, want late", second.PreviousStatus)
	}
	if len(sync.history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(sync.history))
	}
	if sync.history[1].PreviousStatus == nil || *sync.history[1].PreviousStatus != attendance.StatusLate {
		t.Error("second history entry should carry the previous status")
	}
}

// TestExecuteApplyStatusChange_OutsideWindow verifies dates outside the
// enrollment window are rejected before any write.
func TestExecuteApplyStatusChange_OutsideWindow(t *testing.T) {
	sync := newMockSyncStore()
	deps := statusChangeDeps(sync, nil)

	// EnglishB ended 2026-01-15
	_, err := ExecuteApplyStatusChange(context.Background(), ApplyStatusChangeInput{
		StudentID: "s1",
		ClassID:   "c-eng",
		ClassName: "EnglishB",
		DateKey:   "2026-01-20",
		NewStatus: attendance.StatusPresent,
		ChangedBy: "teacher-1",
	}, deps)
	if !errors.Is(err, ErrDateOutsideWindow) {
		t.Fatalf("err = %v, want ErrDateOutsideWindow", err)
	}
	if len(sync.history) != 0 || len(sync.cells) != 0 {
		t.Error("no writes may happen for a rejected date")
	}
}

// TestExecuteApplyStatusChange_TxFailure verifies a rejected transaction
// propagates and enqueues nothing.
func TestExecuteApplyStatusChange_TxFailure(t *testing.T) {
	sync := newMockSyncStore()
	sync.failTx = true
	ob := &mockOutbox{}

	_, err := ExecuteApplyStatusChange(context.Background(), ApplyStatusChangeInput{
		StudentID: "s1",
		ClassID:   "c-math",
		ClassName: "MathA",
		DateKey:   "2026-01-20",
		NewStatus: attendance.StatusPresent,
		ChangedBy: "teacher-1",
	}, statusChangeDeps(sync, ob))
	if err == nil {
		t.Fatal("expected transaction error")
	}
	if len(ob.entries) != 0 {
		t.Error("mirror must not be enqueued when the primary change failed")
	}
}

// TestExecuteApplyStatusChange_BadStatus verifies unknown statuses are
// rejected up front.
func TestExecuteApplyStatusChange_BadStatus(t *testing.T) {
	sync := newMockSyncStore()
	_, err := ExecuteApplyStatusChange(context.Background(), ApplyStatusChangeInput{
		StudentID: "s1",
		ClassID:   "c-math",
		ClassName: "MathA",
		DateKey:   "2026-01-20",
		NewStatus: attendance.Status("vanished"),
		ChangedBy: "teacher-1",
	}, statusChangeDeps(sync, nil))
	if !errors.Is(err, attendance.ErrBadStatus) {
		t.Fatalf("err = %v, want ErrBadStatus", err)
	}
}
