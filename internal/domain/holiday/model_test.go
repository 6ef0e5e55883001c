package holiday_test

import (
	"testing"

	"academy/internal/domain/holiday"
)

// TestHoliday_Validate tests validation of Holiday.
func TestHoliday_Validate(t *testing.T) {
	tests := []struct {
		name    string
		holiday holiday.Holiday
		wantErr bool
	}{
		{"valid single day", holiday.Holiday{ID: "h1", Name: "New Year", StartKey: "2026-01-01", EndKey: "2026-01-01"}, false},
		{"valid range", holiday.Holiday{ID: "h2", Name: "Seollal", StartKey: "2026-02-16", EndKey: "2026-02-18"}, false},
		{"empty name", holiday.Holiday{ID: "h3", Name: " ", StartKey: "2026-01-01", EndKey: "2026-01-01"}, true},
		{"bad start", holiday.Holiday{ID: "h4", Name: "X", StartKey: "Jan 1", EndKey: "2026-01-01"}, true},
		{"end before start", holiday.Holiday{ID: "h5", Name: "X", StartKey: "2026-01-02", EndKey: "2026-01-01"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.holiday.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestHoliday_ContainsKey verifies boundary inclusion.
func TestHoliday_ContainsKey(t *testing.T) {
	h := holiday.Holiday{ID: "h1", Name: "Seollal", StartKey: "2026-02-16", EndKey: "2026-02-18"}
	if !h.ContainsKey("2026-02-16") || !h.ContainsKey("2026-02-18") {
		t.Error("boundary days should be contained")
	}
	if h.ContainsKey("2026-02-15") || h.ContainsKey("2026-02-19") {
		t.Error("days outside the range should not be contained")
	}
}

// TestHoliday_KeysIn verifies clipping against a query range.
func TestHoliday_KeysIn(t *testing.T) {
	h := holiday.Holiday{ID: "h1", Name: "Seollal", StartKey: "2026-02-16", EndKey: "2026-02-18"}

	keys := h.KeysIn("2026-02-01", "2026-02-28")
	if len(keys) != 3 || keys[0] != "2026-02-16" || keys[2] != "2026-02-18" {
		t.Errorf("KeysIn full month = %v", keys)
	}

	clipped := h.KeysIn("2026-02-17", "2026-02-28")
	if len(clipped) != 2 || clipped[0] != "2026-02-17" {
		t.Errorf("KeysIn clipped = %v", clipped)
	}

	if out := h.KeysIn("2026-03-01", "2026-03-31"); out != nil {
		t.Errorf("KeysIn disjoint = %v, want nil", out)
	}
}
