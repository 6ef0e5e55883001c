package orchestrators

import (
	"context"
	"testing"
	"time"

	"academy/internal/application/projections"
	"academy/internal/domain/attendance"
	"academy/internal/domain/compensation"
	"academy/internal/domain/student"
)

// Adapters bridging the orchestrator mocks to the projection store surfaces,
// so one scenario can run the write path and read the results back.

type scenarioStudents struct{ students []student.Student }

func (s *scenarioStudents) List(_ context.Context) ([]student.Student, error) {
	return s.students, nil
}

type scenarioCells struct{ sync *mockSyncStore }

func (s *scenarioCells) ListCellsByStudentMonth(_ context.Context, studentID, month string) ([]attendance.Cell, error) {
	var out []attendance.Cell
	for _, c := range s.sync.cells {
		if c.StudentID == studentID && attendance.MonthOf(c.DateKey) == month {
			out = append(out, c)
		}
	}
	return out, nil
}

// TestScenario_TwoEnrollmentMonth drives a month of status changes for one
// student enrolled in two classes through the write path, then reads the
// expanded rows and the compensation summary back and checks the chain end
// to end: class scoping, validity windows, units and pay.
func TestScenario_TwoEnrollmentMonth(t *testing.T) {
	sync := newMockSyncStore()
	deps := statusChangeDeps(sync, &mockOutbox{})

	// MathA runs Tue/Thu all month; EnglishB runs Mon and ended Jan 15.
	changes := []struct {
		classID, className, dateKey string
		status                      attendance.Status
	}{
		{"c-math", "MathA", "2026-01-06", attendance.StatusPresent},
		{"c-math", "MathA", "2026-01-08", attendance.StatusLate},
		{"c-math", "MathA", "2026-01-13", attendance.StatusAbsent},
		{"c-eng", "EnglishB", "2026-01-05", attendance.StatusPresent},
		{"c-eng", "EnglishB", "2026-01-12", attendance.StatusPresent},
	}
	for _, ch := range changes {
		_, err := ExecuteApplyStatusChange(context.Background(), ApplyStatusChangeInput{
			StudentID: "s1",
			ClassID:   ch.classID,
			ClassName: ch.className,
			DateKey:   ch.dateKey,
			NewStatus: ch.status,
			ChangedBy: "teacher-1",
		}, deps)
		if err != nil {
			t.Fatalf("status change %s %s: %v", ch.className, ch.dateKey, err)
		}
	}

	projDeps := projections.CompensationSummaryDeps{
		StudentStore: &scenarioStudents{students: []student.Student{seededStudent()}},
		CellStore:    &scenarioCells{sync: sync},
		Config: &compensation.Config{
			FeePercent: 8.9,
			Items: []compensation.RatePolicyItem{
				{Name: "MathA", Type: compensation.TypeFixed, FixedRate: 30000},
				{Name: "EnglishB", Type: compensation.TypeFixed, FixedRate: 20000},
			},
		},
	}

	expanded, err := projections.QueryExpandRows(context.Background(), projections.ExpandRowsQuery{
		Month: "2026-01",
	}, projections.ExpandRowsDeps{StudentStore: projDeps.StudentStore, CellStore: projDeps.CellStore})
	if err != nil {
		t.Fatalf("QueryExpandRows: %v", err)
	}
	if len(expanded.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (one per enrollment)", len(expanded.Rows))
	}
	for _, row := range expanded.Rows {
		wantCells := 3
		if row.Group == "EnglishB" {
			wantCells = 2
		}
		if len(row.Cells) != wantCells {
			t.Errorf("%s cells = %d, want %d", row.Group, len(row.Cells), wantCells)
		}
		for key := range row.Cells {
			if row.Cells[key].ClassName != row.Group {
				t.Errorf("%s row carries a cell for %s", row.Group, row.Cells[key].ClassName)
			}
		}
	}

	summary, err := projections.QueryCompensationSummary(context.Background(), projections.CompensationSummaryQuery{
		Month:  "2026-01",
		Cutoff: time.Date(2026, 1, 20, 23, 0, 0, 0, time.UTC),
	}, projDeps)
	if err != nil {
		t.Fatalf("QueryCompensationSummary: %v", err)
	}

	// MathA: present(1) + late(2, billed verbatim) + absent(0) = 3 units at
	// 30000; EnglishB: two presents = 2 units at 20000.
	if summary.TotalCompensation != 130000 {
		t.Errorf("TotalCompensation = %d, want 130000", summary.TotalCompensation)
	}

	// Scheduled through Jan 20: MathA Tue 6/13/20 + Thu 1/8/15 = 6;
	// EnglishB Mon 5/12 inside its window = 2. Attended cells: 4 of 8.
	if summary.ScheduledCount != 8 {
		t.Errorf("ScheduledCount = %d, want 8", summary.ScheduledCount)
	}
	if summary.PresentCount != 4 {
		t.Errorf("PresentCount = %d, want 4", summary.PresentCount)
	}
	if summary.AttendanceRatePercent != 50 {
		t.Errorf("AttendanceRatePercent = %v, want 50", summary.AttendanceRatePercent)
	}

	// Both enrollments started in January; EnglishB also ends in January.
	if summary.NewCount != 2 || summary.DepartingCount != 1 {
		t.Errorf("NewCount/DepartingCount = %d/%d, want 2/1", summary.NewCount, summary.DepartingCount)
	}
}
