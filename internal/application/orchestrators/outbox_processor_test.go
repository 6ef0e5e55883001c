package orchestrators

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"academy/internal/domain/attendance"
)

// mirrorSink records mirrored roster rows keyed like the reporting table.
type mirrorSink struct {
	rows map[string]attendance.RosterRecord
}

func (s *mirrorSink) SaveRosterRecord(_ context.Context, rec attendance.RosterRecord) error {
	if s.rows == nil {
		s.rows = make(map[string]attendance.RosterRecord)
	}
	s.rows[rosterKey(rec.ClassDate, rec.StudentID, rec.ClassID)] = rec
	return nil
}

func mirrorPayload(t *testing.T) string {
	t.Helper()
	payload, err := json.Marshal(rosterMirrorPayload{
		RecordID:    "r-001",
		ClassDate:   "2026-01-20",
		StudentID:   "s1",
		StudentName: "Jiwoo Park",
		ClassID:     "c-math",
		ClassName:   "MathA",
		Status:      string(attendance.StatusLate),
		UpdatedBy:   "teacher-1",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return string(payload)
}

// TestRosterMirrorExecutor_ReplayConverges verifies replaying the same
// payload, even repeatedly, leaves exactly one mirror row carrying the
// original record id and status.
func TestRosterMirrorExecutor_ReplayConverges(t *testing.T) {
	sink := &mirrorSink{}
	exec := &RosterMirrorExecutor{
		Sink: sink,
		Now:  func() time.Time { return time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC) },
	}
	payload := mirrorPayload(t)

	first, err := exec.Execute(context.Background(), payload)
	if err != nil {
		t.Fatalf("first replay: %v", err)
	}
	second, err := exec.Execute(context.Background(), payload)
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}

	if first != "r-001" || second != first {
		t.Errorf("record ids = %q, %q, want stable r-001", first, second)
	}
	if len(sink.rows) != 1 {
		t.Fatalf("mirror rows = %d, want 1", len(sink.rows))
	}
	rec := sink.rows[rosterKey("2026-01-20", "s1", "c-math")]
	if rec.Status != attendance.StatusLate {
		t.Errorf("mirrored status = %q, want late", rec.Status)
	}
	if rec.StudentName != "Jiwoo Park" {
		t.Errorf("mirrored student name = %q", rec.StudentName)
	}
}

// TestRosterMirrorExecutor_BadPayload verifies malformed payloads fail
// without touching the sink.
func TestRosterMirrorExecutor_BadPayload(t *testing.T) {
	sink := &mirrorSink{}
	exec := &RosterMirrorExecutor{Sink: sink}

	if _, err := exec.Execute(context.Background(), "{not json"); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if len(sink.rows) != 0 {
		t.Error("sink must not be written for a malformed payload")
	}
}
