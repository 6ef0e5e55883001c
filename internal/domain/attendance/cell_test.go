package attendance_test

import (
	"testing"

	"academy/internal/domain/attendance"
)

// TestCellKey_String verifies the scoped ledger map key format.
func TestCellKey_String(t *testing.T) {
	k := attendance.CellKey{StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20"}
	if got := k.String(); got != "MathA::2026-01-20" {
		t.Errorf("String() = %q, want MathA::2026-01-20", got)
	}
}

// TestParseScopedKey verifies round-trip and malformed-key rejection.
func TestParseScopedKey(t *testing.T) {
	class, date, err := attendance.ParseScopedKey("MathA::2026-01-20")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if class != "MathA" || date != "2026-01-20" {
		t.Errorf("got (%q, %q)", class, date)
	}

	for _, bad := range []string{"", "MathA", "::2026-01-20", "MathA::"} {
		if _, _, err := attendance.ParseScopedKey(bad); err == nil {
			t.Errorf("ParseScopedKey(%q): expected error", bad)
		}
	}
}

// TestCellKey_Validate tests validation of CellKey.
func TestCellKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     attendance.CellKey
		wantErr bool
	}{
		{"valid", attendance.CellKey{StudentID: "s1", ClassName: "MathA", DateKey: "2026-01-20"}, false},
		{"missing student", attendance.CellKey{ClassName: "MathA", DateKey: "2026-01-20"}, true},
		{"missing class", attendance.CellKey{StudentID: "s1", DateKey: "2026-01-20"}, true},
		{"bad date", attendance.CellKey{StudentID: "s1", ClassName: "MathA", DateKey: "20 Jan"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestCell_SessionUnits verifies the attended session-unit reading.
func TestCell_SessionUnits(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name  string
		value *float64
		want  float64
	}{
		{"unset", nil, 0},
		{"absent", f(0), 0},
		{"half session", f(0.5), 0.5},
		{"one session", f(1), 1},
		{"double session", f(2), 2},
		{"negative clamps", f(-3), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := attendance.Cell{Value: tt.value}
			if got := c.SessionUnits(); got != tt.want {
				t.Errorf("SessionUnits() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestMonthBounds verifies month boundary date keys.
func TestMonthBounds(t *testing.T) {
	first, last, err := attendance.MonthBounds("2026-02")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if first != "2026-02-01" || last != "2026-02-28" {
		t.Errorf("got (%q, %q)", first, last)
	}
	if _, _, err := attendance.MonthBounds("Feb 2026"); err == nil {
		t.Error("expected error for malformed month")
	}
}

// TestMonthOf verifies the date-key to month-key projection.
func TestMonthOf(t *testing.T) {
	if got := attendance.MonthOf("2026-01-20"); got != "2026-01" {
		t.Errorf("MonthOf = %q, want 2026-01", got)
	}
}
