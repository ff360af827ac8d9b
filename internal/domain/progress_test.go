package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func d(year int, month time.Month, day int) Date {
	return NewDate(year, month, day)
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name          string
		required      string
		earned        string
		cycleEnd      Date
		today         Date
		wantRemaining string
		wantPercent   string
		wantDays      int
		wantStatus    CycleStatus
	}{
		{
			name:          "on track with partial hours",
			required:      "40",
			earned:        "10",
			cycleEnd:      d(2024, time.December, 31),
			today:         d(2024, time.June, 1),
			wantRemaining: "30",
			wantPercent:   "0.25",
			wantDays:      213,
			wantStatus:    StatusOnTrack,
		},
		{
			name:          "at risk at exactly 30 days",
			required:      "10",
			earned:        "5",
			cycleEnd:      d(2024, time.January, 31),
			today:         d(2024, time.January, 1),
			wantRemaining: "5",
			wantPercent:   "0.5",
			wantDays:      30,
			wantStatus:    StatusAtRisk,
		},
		{
			name:          "on track at 31 days",
			required:      "10",
			earned:        "5",
			cycleEnd:      d(2024, time.February, 1),
			today:         d(2024, time.January, 1),
			wantRemaining: "5",
			wantPercent:   "0.5",
			wantDays:      31,
			wantStatus:    StatusOnTrack,
		},
		{
			name:          "complete before end",
			required:      "10",
			earned:        "10",
			cycleEnd:      d(2024, time.December, 31),
			today:         d(2024, time.June, 1),
			wantRemaining: "0",
			wantPercent:   "1",
			wantDays:      213,
			wantStatus:    StatusComplete,
		},
		{
			name:          "complete on the end date itself",
			required:      "10",
			earned:        "10",
			cycleEnd:      d(2024, time.June, 1),
			today:         d(2024, time.June, 1),
			wantRemaining: "0",
			wantPercent:   "1",
			wantDays:      0,
			wantStatus:    StatusComplete,
		},
		{
			name:          "overdue wins over complete",
			required:      "10",
			earned:        "10",
			cycleEnd:      d(2024, time.May, 31),
			today:         d(2024, time.June, 1),
			wantRemaining: "0",
			wantPercent:   "1",
			wantDays:      -1,
			wantStatus:    StatusOverdue,
		},
		{
			name:          "overearned caps percent and floors remaining",
			required:      "10",
			earned:        "25",
			cycleEnd:      d(2024, time.December, 31),
			today:         d(2024, time.June, 1),
			wantRemaining: "0",
			wantPercent:   "1",
			wantDays:      213,
			wantStatus:    StatusComplete,
		},
		{
			name:          "zero required reads complete",
			required:      "0",
			earned:        "0",
			cycleEnd:      d(2024, time.December, 31),
			today:         d(2024, time.June, 1),
			wantRemaining: "0",
			wantPercent:   "1",
			wantDays:      213,
			wantStatus:    StatusComplete,
		},
		{
			name:          "fractional hours",
			required:      "20",
			earned:        "10.5",
			cycleEnd:      d(2024, time.December, 31),
			today:         d(2024, time.June, 1),
			wantRemaining: "9.5",
			wantPercent:   "0.525",
			wantDays:      213,
			wantStatus:    StatusOnTrack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			required := decimal.RequireFromString(tt.required)
			earned := decimal.RequireFromString(tt.earned)

			got := ComputeProgress(required, earned, tt.cycleEnd, tt.today)

			if !got.RemainingHours.Equal(decimal.RequireFromString(tt.wantRemaining)) {
				t.Errorf("remaining = %s, want %s", got.RemainingHours, tt.wantRemaining)
			}
			if !got.Percent.Equal(decimal.RequireFromString(tt.wantPercent)) {
				t.Errorf("percent = %s, want %s", got.Percent, tt.wantPercent)
			}
			if got.DaysRemaining != tt.wantDays {
				t.Errorf("days remaining = %d, want %d", got.DaysRemaining, tt.wantDays)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestDetectCrossCycleWarnings(t *testing.T) {
	courseA := uuid.New()
	courseB := uuid.New()
	cycle1 := uuid.New()
	cycle2 := uuid.New()
	cycle3 := uuid.New()

	t.Run("same course in two cycles of one state", func(t *testing.T) {
		refs := []AllocationRef{
			{StateCode: "CA", CourseID: courseA, CourseTitle: "Ethics", CycleID: cycle1},
			{StateCode: "CA", CourseID: courseA, CourseTitle: "Ethics", CycleID: cycle2},
		}

		warnings := DetectCrossCycleWarnings(refs)

		if len(warnings) != 2 {
			t.Fatalf("expected warnings on 2 cycles, got %d", len(warnings))
		}
		for _, cycleID := range []uuid.UUID{cycle1, cycle2} {
			ws := warnings[cycleID]
			if len(ws) != 1 {
				t.Fatalf("cycle %s: expected 1 warning, got %d", cycleID, len(ws))
			}
			w := ws[0]
			if w.Kind != WarningKindCrossCycle {
				t.Errorf("kind = %s", w.Kind)
			}
			if w.StateCode != "CA" || w.CourseID != courseA {
				t.Errorf("unexpected warning scope: %+v", w)
			}
			if len(w.CycleIDs) != 2 {
				t.Errorf("expected both cycle ids listed, got %v", w.CycleIDs)
			}
		}

		// Both copies list the same sorted cycle set.
		a := warnings[cycle1][0].CycleIDs
		b := warnings[cycle2][0].CycleIDs
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("cycle id lists differ: %v vs %v", a, b)
			}
		}
	})

	t.Run("same course across different states is fine", func(t *testing.T) {
		refs := []AllocationRef{
			{StateCode: "CA", CourseID: courseA, CourseTitle: "Ethics", CycleID: cycle1},
			{StateCode: "NV", CourseID: courseA, CourseTitle: "Ethics", CycleID: cycle3},
		}

		warnings := DetectCrossCycleWarnings(refs)

		if len(warnings) != 0 {
			t.Errorf("expected no warnings, got %v", warnings)
		}
	})

	t.Run("duplicate allocation rows collapse", func(t *testing.T) {
		refs := []AllocationRef{
			{StateCode: "CA", CourseID: courseB, CourseTitle: "Wound Care", CycleID: cycle1},
			{StateCode: "CA", CourseID: courseB, CourseTitle: "Wound Care", CycleID: cycle1},
		}

		warnings := DetectCrossCycleWarnings(refs)

		if len(warnings) != 0 {
			t.Errorf("expected no warnings for a single distinct cycle, got %v", warnings)
		}
	})

	t.Run("no allocations", func(t *testing.T) {
		warnings := DetectCrossCycleWarnings(nil)
		if len(warnings) != 0 {
			t.Errorf("expected no warnings, got %v", warnings)
		}
	})
}
