package attendance_test

import (
	"testing"

	"academy/internal/domain/attendance"
)

// TestStatusFromValue_Canonical verifies the five canonical value mappings.
func TestStatusFromValue_Canonical(t *testing.T) {
	tests := []struct {
		value float64
		want  attendance.Status
	}{
		{0, attendance.StatusAbsent},
		{1, attendance.StatusPresent},
		{2, attendance.StatusLate},
		{3, attendance.StatusEarlyLeave},
		{4, attendance.StatusExcused},
	}
	for _, tt := range tests {
		v := tt.value
		if got := attendance.StatusFromValue(&v); got != tt.want {
			t.Errorf("StatusFromValue(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

// TestStatusFromValue_NilIsAbsent verifies an unset cell reads as absent.
func TestStatusFromValue_NilIsAbsent(t *testing.T) {
	if got := attendance.StatusFromValue(nil); got != attendance.StatusAbsent {
		t.Errorf("StatusFromValue(nil) = %q, want absent", got)
	}
}

// TestStatusFromValue_UnknownValuesFailSoft verifies out-of-range values map
// to absent without error.
func TestStatusFromValue_UnknownValuesFailSoft(t *testing.T) {
	for _, v := range []float64{99, -1, 0.5, 1.5, 2.5} {
		value := v
		if got := attendance.StatusFromValue(&value); got != attendance.StatusAbsent {
			t.Errorf("StatusFromValue(%v) = %q, want absent", v, got)
		}
	}
}

// TestCodec_RoundTrip verifies ValueFromStatus(StatusFromValue(v)) == v for
// all canonical values.
func TestCodec_RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, 2, 3, 4} {
		value := v
		s := attendance.StatusFromValue(&value)
		if got := attendance.ValueFromStatus(s); got != v {
			t.Errorf("round trip of %v = %v (via %q)", v, got, s)
		}
	}
}

// TestValueFromStatus_UnknownIsZero verifies unknown statuses map to 0.
func TestValueFromStatus_UnknownIsZero(t *testing.T) {
	if got := attendance.ValueFromStatus(attendance.Status("vanished")); got != 0 {
		t.Errorf("ValueFromStatus(unknown) = %v, want 0", got)
	}
}
