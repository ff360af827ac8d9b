package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/cetrack/internal/domain"
)

func newCycleFixture(t *testing.T) (*CycleService, *mockLicenseRepo, *mockCycleRepo, *mockAllocationRepo, *mockTx) {
	t.Helper()
	licenses := newMockLicenseRepo()
	cycles := newMockCycleRepo()
	courses := newMockCourseRepo()
	allocations := newMockAllocationRepo(courses, cycles)
	tx := &mockTx{}
	svc := NewCycleService(licenses, cycles, allocations, tx, zerolog.Nop())
	return svc, licenses, cycles, allocations, tx
}

// =============================================================================
// CreateCycle Tests
// =============================================================================

func TestCreateCycle(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name    string
		start   domain.Date
		end     domain.Date
		hours   decimal.Decimal
		foreign bool
		wantErr error
	}{
		{
			name:  "creates valid cycle",
			start: domain.NewDate(2024, 1, 1),
			end:   domain.NewDate(2025, 12, 31),
			hours: decimal.NewFromInt(25),
		},
		{
			name:    "rejects end before start",
			start:   domain.NewDate(2025, 1, 1),
			end:     domain.NewDate(2024, 1, 1),
			hours:   decimal.NewFromInt(25),
			wantErr: domain.ErrValidation,
		},
		{
			name:    "rejects end equal to start",
			start:   domain.NewDate(2024, 1, 1),
			end:     domain.NewDate(2024, 1, 1),
			hours:   decimal.NewFromInt(25),
			wantErr: domain.ErrValidation,
		},
		{
			name:    "rejects negative required hours",
			start:   domain.NewDate(2024, 1, 1),
			end:     domain.NewDate(2025, 12, 31),
			hours:   decimal.NewFromInt(-1),
			wantErr: domain.ErrValidation,
		},
		{
			name:    "rejects another user's license",
			start:   domain.NewDate(2024, 1, 1),
			end:     domain.NewDate(2025, 12, 31),
			hours:   decimal.NewFromInt(25),
			foreign: true,
			wantErr: domain.ErrStateLicenseNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, licenses, _, _, _ := newCycleFixture(t)
			owner := userID
			if tt.foreign {
				owner = uuid.New()
			}
			license := domain.NewStateLicense(owner, "CA", nil)
			licenses.licenses[license.ID] = license

			cycle, err := svc.CreateCycle(context.Background(), CreateCycleInput{
				UserID:         userID,
				StateLicenseID: license.ID,
				CycleStart:     tt.start,
				CycleEnd:       tt.end,
				RequiredHours:  tt.hours,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateCycle() error = %v", err)
			}
			if cycle.StateLicenseID != license.ID {
				t.Errorf("StateLicenseID = %v, want %v", cycle.StateLicenseID, license.ID)
			}
		})
	}
}

// =============================================================================
// UpdateCycle Tests
// =============================================================================

func TestUpdateCycle(t *testing.T) {
	userID := uuid.New()
	newEnd := domain.NewDate(2026, 6, 30)

	tests := []struct {
		name    string
		input   UpdateCycleInput
		wantErr string
	}{
		{
			name:  "moves cycle end",
			input: UpdateCycleInput{CycleEnd: &newEnd, SetCycleEnd: true},
		},
		{
			name:    "rejects null cycle_start",
			input:   UpdateCycleInput{SetCycleStart: true},
			wantErr: "cycle_start: cycle_start cannot be null",
		},
		{
			name:    "rejects null required_hours",
			input:   UpdateCycleInput{SetRequiredHours: true},
			wantErr: "required_hours: required_hours cannot be null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, cycles, _, _ := newCycleFixture(t)
			cycle := domain.NewLicenseCycle(uuid.New(),
				domain.NewDate(2024, 1, 1), domain.NewDate(2025, 12, 31),
				decimal.NewFromInt(25))
			cycles.add(userID, "CA", cycle)

			tt.input.UserID = userID
			tt.input.CycleID = cycle.ID
			updated, err := svc.UpdateCycle(context.Background(), tt.input)
			if tt.wantErr != "" {
				if err == nil || !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("error = %v, want validation error", err)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateCycle() error = %v", err)
			}
			if !updated.CycleEnd.Equal(newEnd) {
				t.Errorf("CycleEnd = %v, want %v", updated.CycleEnd, newEnd)
			}
		})
	}
}

// =============================================================================
// DeleteCycle Tests
// =============================================================================

func TestDeleteCycleRemovesAllocations(t *testing.T) {
	userID := uuid.New()
	svc, _, cycles, allocations, tx := newCycleFixture(t)

	cycle := domain.NewLicenseCycle(uuid.New(),
		domain.NewDate(2024, 1, 1), domain.NewDate(2025, 12, 31),
		decimal.NewFromInt(25))
	cycles.add(userID, "CA", cycle)

	course := domain.NewCourseCredit(userID, "Ethics", nil, domain.NewDate(2024, 6, 1), decimal.NewFromInt(3))
	allocations.courses.courses[course.ID] = course
	alloc := domain.NewCreditAllocation(course.ID, cycle.ID)
	allocations.allocations[alloc.ID] = alloc

	if err := svc.DeleteCycle(context.Background(), userID, cycle.ID); err != nil {
		t.Fatalf("DeleteCycle() error = %v", err)
	}
	if tx.calls != 1 {
		t.Errorf("tx calls = %d, want 1", tx.calls)
	}
	if len(allocations.allocations) != 0 {
		t.Errorf("allocations left = %d, want 0", len(allocations.allocations))
	}
	if _, ok := cycles.records[cycle.ID]; ok {
		t.Error("cycle still present after delete")
	}
}

func TestDeleteCycleOtherUser(t *testing.T) {
	svc, _, cycles, _, _ := newCycleFixture(t)
	cycle := domain.NewLicenseCycle(uuid.New(),
		domain.NewDate(2024, 1, 1), domain.NewDate(2025, 12, 31),
		decimal.NewFromInt(25))
	cycles.add(uuid.New(), "CA", cycle)

	err := svc.DeleteCycle(context.Background(), uuid.New(), cycle.ID)
	if !errors.Is(err, domain.ErrLicenseCycleNotFound) {
		t.Errorf("error = %v, want ErrLicenseCycleNotFound", err)
	}
}
