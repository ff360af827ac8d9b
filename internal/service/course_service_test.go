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

type courseFixture struct {
	svc          *CourseService
	courses      *mockCourseRepo
	cycles       *mockCycleRepo
	allocations  *mockAllocationRepo
	certificates *mockCertificateRepo
	blobs        *mockBackend
	tx           *mockTx
}

func newCourseFixture(t *testing.T) *courseFixture {
	t.Helper()
	courses := newMockCourseRepo()
	cycles := newMockCycleRepo()
	allocations := newMockAllocationRepo(courses, cycles)
	certificates := newMockCertificateRepo(courses)
	blobs := newMockBackend()
	tx := &mockTx{}
	return &courseFixture{
		svc:          NewCourseService(courses, cycles, allocations, certificates, blobs, tx, zerolog.Nop()),
		courses:      courses,
		cycles:       cycles,
		allocations:  allocations,
		certificates: certificates,
		blobs:        blobs,
		tx:           tx,
	}
}

// =============================================================================
// CreateCourse Tests
// =============================================================================

func TestCreateCourseAutoAllocates(t *testing.T) {
	userID := uuid.New()
	f := newCourseFixture(t)

	containing := domain.NewLicenseCycle(uuid.New(),
		domain.NewDate(2024, 1, 1), domain.NewDate(2025, 12, 31),
		decimal.NewFromInt(25))
	f.cycles.add(userID, "CA", containing)

	past := domain.NewLicenseCycle(uuid.New(),
		domain.NewDate(2020, 1, 1), domain.NewDate(2021, 12, 31),
		decimal.NewFromInt(20))
	f.cycles.add(userID, "CA", past)

	foreign := domain.NewLicenseCycle(uuid.New(),
		domain.NewDate(2024, 1, 1), domain.NewDate(2025, 12, 31),
		decimal.NewFromInt(30))
	f.cycles.add(uuid.New(), "NV", foreign)

	course, err := f.svc.CreateCourse(context.Background(), CreateCourseInput{
		UserID:      userID,
		Title:       "Ethics in Clinical Practice",
		CompletedAt: domain.NewDate(2024, 6, 1),
		Hours:       decimal.NewFromInt(3),
	})
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	if f.tx.calls != 1 {
		t.Errorf("tx calls = %d, want 1", f.tx.calls)
	}
	if len(f.allocations.allocations) != 1 {
		t.Fatalf("allocations = %d, want 1", len(f.allocations.allocations))
	}
	for _, a := range f.allocations.allocations {
		if a.CourseCreditID != course.ID {
			t.Errorf("allocation course = %v, want %v", a.CourseCreditID, course.ID)
		}
		if a.LicenseCycleID != containing.ID {
			t.Errorf("allocation cycle = %v, want the containing cycle %v", a.LicenseCycleID, containing.ID)
		}
	}
}

func TestCreateCourseRejectsInvalidHours(t *testing.T) {
	f := newCourseFixture(t)

	tests := []struct {
		name  string
		hours decimal.Decimal
	}{
		{"zero hours", decimal.Zero},
		{"negative hours", decimal.NewFromInt(-2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCourse(context.Background(), CreateCourseInput{
				UserID:      uuid.New(),
				Title:       "Ethics",
				CompletedAt: domain.NewDate(2024, 6, 1),
				Hours:       tt.hours,
			})
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error = %v, want validation error", err)
			}
		})
	}
}

// =============================================================================
// UpdateCourse Tests
// =============================================================================

func TestUpdateCourse(t *testing.T) {
	userID := uuid.New()
	newTitle := "Advanced Wound Care"
	newHours := decimal.NewFromFloat(10.5)
	zeroHours := decimal.Zero

	tests := []struct {
		name    string
		input   UpdateCourseInput
		check   func(*testing.T, *domain.CourseCredit)
		wantErr string
	}{
		{
			name:  "updates title and hours",
			input: UpdateCourseInput{Title: &newTitle, SetTitle: true, Hours: &newHours, SetHours: true},
			check: func(t *testing.T, c *domain.CourseCredit) {
				if c.Title != newTitle {
					t.Errorf("Title = %q, want %q", c.Title, newTitle)
				}
				if !c.Hours.Equal(newHours) {
					t.Errorf("Hours = %v, want %v", c.Hours, newHours)
				}
			},
		},
		{
			name:  "clears provider",
			input: UpdateCourseInput{Provider: nil, SetProvider: true},
			check: func(t *testing.T, c *domain.CourseCredit) {
				if c.Provider != nil {
					t.Errorf("Provider = %v, want nil", *c.Provider)
				}
			},
		},
		{
			name:    "rejects null title",
			input:   UpdateCourseInput{SetTitle: true},
			wantErr: "title: title cannot be null",
		},
		{
			name:    "rejects null completed_at",
			input:   UpdateCourseInput{SetCompletedAt: true},
			wantErr: "completed_at: completed_at cannot be null",
		},
		{
			name:    "rejects null hours",
			input:   UpdateCourseInput{SetHours: true},
			wantErr: "hours: hours cannot be null",
		},
		{
			name:    "revalidates hours",
			input:   UpdateCourseInput{Hours: &zeroHours, SetHours: true},
			wantErr: "hours: must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCourseFixture(t)
			course := domain.NewCourseCredit(userID, "Ethics", strPtr("Acme CE"),
				domain.NewDate(2024, 6, 1), decimal.NewFromInt(3))
			f.courses.courses[course.ID] = course

			tt.input.UserID = userID
			tt.input.CourseID = course.ID
			updated, err := f.svc.UpdateCourse(context.Background(), tt.input)
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
				t.Fatalf("UpdateCourse() error = %v", err)
			}
			tt.check(t, updated)
		})
	}
}

func TestUpdateCourseCompletionDateKeepsAllocations(t *testing.T) {
	userID := uuid.New()
	f := newCourseFixture(t)

	cycle := domain.NewLicenseCycle(uuid.New(),
		domain.NewDate(2024, 1, 1), domain.NewDate(2025, 12, 31),
		decimal.NewFromInt(25))
	f.cycles.add(userID, "CA", cycle)

	course := domain.NewCourseCredit(userID, "Ethics", nil,
		domain.NewDate(2024, 6, 1), decimal.NewFromInt(3))
	f.courses.courses[course.ID] = course
	alloc := domain.NewCreditAllocation(course.ID, cycle.ID)
	f.allocations.allocations[alloc.ID] = alloc

	moved := domain.NewDate(2019, 1, 1)
	_, err := f.svc.UpdateCourse(context.Background(), UpdateCourseInput{
		UserID:         userID,
		CourseID:       course.ID,
		CompletedAt:    &moved,
		SetCompletedAt: true,
	})
	if err != nil {
		t.Fatalf("UpdateCourse() error = %v", err)
	}
	if _, ok := f.allocations.allocations[alloc.ID]; !ok {
		t.Error("moving completed_at must not touch existing allocations")
	}
}

// =============================================================================
// DeleteCourse Tests
// =============================================================================

func TestDeleteCourseCascades(t *testing.T) {
	userID := uuid.New()
	f := newCourseFixture(t)

	cycle := domain.NewLicenseCycle(uuid.New(),
		domain.NewDate(2024, 1, 1), domain.NewDate(2025, 12, 31),
		decimal.NewFromInt(25))
	f.cycles.add(userID, "CA", cycle)

	course := domain.NewCourseCredit(userID, "Ethics", nil,
		domain.NewDate(2024, 6, 1), decimal.NewFromInt(3))
	f.courses.courses[course.ID] = course
	alloc := domain.NewCreditAllocation(course.ID, cycle.ID)
	f.allocations.allocations[alloc.ID] = alloc

	cert := domain.NewCertificate(course.ID, "cert.pdf", nil, 5, "certificates/x/cert.pdf")
	f.certificates.certificates[cert.ID] = cert
	f.blobs.blobs[cert.BlobPath] = []byte("%PDF-")

	if err := f.svc.DeleteCourse(context.Background(), userID, course.ID); err != nil {
		t.Fatalf("DeleteCourse() error = %v", err)
	}
	if len(f.courses.courses) != 0 {
		t.Error("course row still present")
	}
	if len(f.allocations.allocations) != 0 {
		t.Error("allocations still present")
	}
	if len(f.certificates.certificates) != 0 {
		t.Error("certificate rows still present")
	}
	if len(f.blobs.deleted) != 1 || f.blobs.deleted[0] != cert.BlobPath {
		t.Errorf("deleted blobs = %v, want [%s]", f.blobs.deleted, cert.BlobPath)
	}
}

func TestDeleteCourseOtherUser(t *testing.T) {
	f := newCourseFixture(t)
	course := domain.NewCourseCredit(uuid.New(), "Ethics", nil,
		domain.NewDate(2024, 6, 1), decimal.NewFromInt(3))
	f.courses.courses[course.ID] = course

	err := f.svc.DeleteCourse(context.Background(), uuid.New(), course.ID)
	if !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("error = %v, want ErrCourseNotFound", err)
	}
}
