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

type allocationFixture struct {
	svc         *AllocationService
	courses     *mockCourseRepo
	cycles      *mockCycleRepo
	allocations *mockAllocationRepo
	tx          *mockTx
}

func newAllocationFixture(t *testing.T) *allocationFixture {
	t.Helper()
	courses := newMockCourseRepo()
	cycles := newMockCycleRepo()
	allocations := newMockAllocationRepo(courses, cycles)
	tx := &mockTx{}
	return &allocationFixture{
		svc:         NewAllocationService(courses, cycles, allocations, tx, zerolog.Nop()),
		courses:     courses,
		cycles:      cycles,
		allocations: allocations,
		tx:          tx,
	}
}

func (f *allocationFixture) addCourse(userID uuid.UUID) *domain.CourseCredit {
	course := domain.NewCourseCredit(userID, "Ethics", nil,
		domain.NewDate(2024, 6, 1), decimal.NewFromInt(3))
	f.courses.courses[course.ID] = course
	return course
}

func (f *allocationFixture) addCycle(userID uuid.UUID, state string) *domain.LicenseCycle {
	cycle := domain.NewLicenseCycle(uuid.New(),
		domain.NewDate(2024, 1, 1), domain.NewDate(2025, 12, 31),
		decimal.NewFromInt(25))
	f.cycles.add(userID, state, cycle)
	return cycle
}

// =============================================================================
// CreateAllocation Tests
// =============================================================================

func TestCreateAllocation(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name    string
		setup   func(*allocationFixture) (uuid.UUID, uuid.UUID)
		wantErr error
	}{
		{
			name: "links owned course and cycle",
			setup: func(f *allocationFixture) (uuid.UUID, uuid.UUID) {
				return f.addCourse(userID).ID, f.addCycle(userID, "CA").ID
			},
		},
		{
			name: "rejects another user's course",
			setup: func(f *allocationFixture) (uuid.UUID, uuid.UUID) {
				return f.addCourse(uuid.New()).ID, f.addCycle(userID, "CA").ID
			},
			wantErr: domain.ErrCourseNotFound,
		},
		{
			name: "rejects another user's cycle",
			setup: func(f *allocationFixture) (uuid.UUID, uuid.UUID) {
				return f.addCourse(userID).ID, f.addCycle(uuid.New(), "CA").ID
			},
			wantErr: domain.ErrLicenseCycleNotFound,
		},
		{
			name: "rejects duplicate pair",
			setup: func(f *allocationFixture) (uuid.UUID, uuid.UUID) {
				course := f.addCourse(userID)
				cycle := f.addCycle(userID, "CA")
				alloc := domain.NewCreditAllocation(course.ID, cycle.ID)
				f.allocations.allocations[alloc.ID] = alloc
				return course.ID, cycle.ID
			},
			wantErr: domain.ErrAllocationExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAllocationFixture(t)
			courseID, cycleID := tt.setup(f)

			alloc, err := f.svc.CreateAllocation(context.Background(), CreateAllocationInput{
				UserID:   userID,
				CourseID: courseID,
				CycleID:  cycleID,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateAllocation() error = %v", err)
			}
			if alloc.CourseCreditID != courseID || alloc.LicenseCycleID != cycleID {
				t.Errorf("allocation links (%v, %v), want (%v, %v)",
					alloc.CourseCreditID, alloc.LicenseCycleID, courseID, cycleID)
			}
		})
	}
}

// =============================================================================
// BulkAllocate Tests
// =============================================================================

func TestBulkAllocate(t *testing.T) {
	userID := uuid.New()
	f := newAllocationFixture(t)
	course := f.addCourse(userID)
	cycleA := f.addCycle(userID, "CA")
	cycleB := f.addCycle(userID, "NV")

	existing := domain.NewCreditAllocation(course.ID, cycleA.ID)
	f.allocations.allocations[existing.ID] = existing

	out, err := f.svc.BulkAllocate(context.Background(), BulkAllocateInput{
		UserID:   userID,
		CourseID: course.ID,
		CycleIDs: []uuid.UUID{cycleA.ID, cycleB.ID, cycleB.ID},
	})
	if err != nil {
		t.Fatalf("BulkAllocate() error = %v", err)
	}
	if len(out.Created) != 1 || out.Created[0].LicenseCycleID != cycleB.ID {
		t.Errorf("Created = %v, want one allocation for cycle %v", out.Created, cycleB.ID)
	}
	if len(out.Skipped) != 1 || out.Skipped[0] != cycleA.ID {
		t.Errorf("Skipped = %v, want [%v]", out.Skipped, cycleA.ID)
	}
	if f.tx.calls != 1 {
		t.Errorf("tx calls = %d, want 1", f.tx.calls)
	}
}

func TestBulkAllocateEmptyInput(t *testing.T) {
	userID := uuid.New()
	f := newAllocationFixture(t)
	course := f.addCourse(userID)

	out, err := f.svc.BulkAllocate(context.Background(), BulkAllocateInput{
		UserID:   userID,
		CourseID: course.ID,
	})
	if err != nil {
		t.Fatalf("BulkAllocate() error = %v", err)
	}
	if out.Created == nil || len(out.Created) != 0 {
		t.Errorf("Created = %v, want empty non-nil slice", out.Created)
	}
	if out.Skipped == nil || len(out.Skipped) != 0 {
		t.Errorf("Skipped = %v, want empty non-nil slice", out.Skipped)
	}
}

func TestBulkAllocateAllOrNothing(t *testing.T) {
	userID := uuid.New()
	f := newAllocationFixture(t)
	course := f.addCourse(userID)
	owned := f.addCycle(userID, "CA")
	foreign := f.addCycle(uuid.New(), "NV")

	_, err := f.svc.BulkAllocate(context.Background(), BulkAllocateInput{
		UserID:   userID,
		CourseID: course.ID,
		CycleIDs: []uuid.UUID{owned.ID, foreign.ID},
	})
	if !errors.Is(err, domain.ErrLicenseCycleNotFound) {
		t.Fatalf("error = %v, want ErrLicenseCycleNotFound", err)
	}
	if len(f.allocations.allocations) != 0 {
		t.Errorf("allocations = %d, want 0 after rejected request", len(f.allocations.allocations))
	}
}

func TestBulkAllocateUnknownCourse(t *testing.T) {
	f := newAllocationFixture(t)

	_, err := f.svc.BulkAllocate(context.Background(), BulkAllocateInput{
		UserID:   uuid.New(),
		CourseID: uuid.New(),
		CycleIDs: []uuid.UUID{uuid.New()},
	})
	if !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("error = %v, want ErrCourseNotFound", err)
	}
}

// =============================================================================
// DeleteAllocation Tests
// =============================================================================

func TestDeleteAllocation(t *testing.T) {
	userID := uuid.New()
	f := newAllocationFixture(t)
	course := f.addCourse(userID)
	cycle := f.addCycle(userID, "CA")
	alloc := domain.NewCreditAllocation(course.ID, cycle.ID)
	f.allocations.allocations[alloc.ID] = alloc

	if err := f.svc.DeleteAllocation(context.Background(), userID, alloc.ID); err != nil {
		t.Fatalf("DeleteAllocation() error = %v", err)
	}
	if len(f.allocations.allocations) != 0 {
		t.Error("allocation still present")
	}

	err := f.svc.DeleteAllocation(context.Background(), userID, alloc.ID)
	if !errors.Is(err, domain.ErrAllocationNotFound) {
		t.Errorf("error = %v, want ErrAllocationNotFound", err)
	}
}
