// Package repository defines data access interfaces for CE Track.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, in-memory for testing) while keeping
// the service layer clean.
//
// Every read and write is scoped through the ownership chain
// (User → StateLicense → LicenseCycle, User → CourseCredit → {CreditAllocation,
// Certificate}): methods take the owning user id and join up to it, so an
// entity owned by another user is indistinguishable from a missing one.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	// Returns domain.ErrUserExists on a duplicate external identifier.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByExternalID retrieves a user by external identifier.
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
}

// =============================================================================
// State License Repository
// =============================================================================

// StateLicenseRepository defines the interface for state license data access.
type StateLicenseRepository interface {
	// Create creates a new state license.
	// Returns domain.ErrStateLicenseExists on a duplicate (user, state_code).
	Create(ctx context.Context, license *domain.StateLicense) error

	// GetByID retrieves a license owned by the given user.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.StateLicense, error)

	// ListByUser returns the user's licenses ordered by state code.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.StateLicense, error)

	// Update persists license_number changes.
	Update(ctx context.Context, license *domain.StateLicense) error

	// Delete deletes a license owned by the given user.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// =============================================================================
// License Cycle Repository
// =============================================================================

// CycleWithState is a cycle joined with its license's state code.
type CycleWithState struct {
	Cycle         domain.LicenseCycle
	StateCode     string
	LicenseNumber *string
}

// LicenseCycleRepository defines the interface for license cycle data access.
type LicenseCycleRepository interface {
	// Create creates a new cycle under an already-ownership-checked license.
	Create(ctx context.Context, cycle *domain.LicenseCycle) error

	// GetByID retrieves a cycle owned (via its license) by the given user.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.LicenseCycle, error)

	// ListByUser returns the user's cycles ordered by cycle_end ascending,
	// optionally restricted to one license.
	ListByUser(ctx context.Context, userID uuid.UUID, stateLicenseID *uuid.UUID) ([]*domain.LicenseCycle, error)

	// ListWithState returns the user's cycles joined with their state codes,
	// ordered by state code then cycle_end ascending. The optional window
	// keeps cycles with cycle_end >= from and cycle_start <= to; the optional
	// state restricts to one state code.
	ListWithState(ctx context.Context, userID uuid.UUID, from, to *domain.Date, state *string) ([]CycleWithState, error)

	// ListContaining returns ids of the user's cycles whose
	// [cycle_start, cycle_end] window contains the given date.
	ListContaining(ctx context.Context, userID uuid.UUID, date domain.Date) ([]uuid.UUID, error)

	// ListOwnedIDs filters the given cycle ids down to those owned by the user.
	ListOwnedIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)

	// CountByLicense returns the number of cycles under a license.
	CountByLicense(ctx context.Context, stateLicenseID uuid.UUID) (int64, error)

	// Update persists cycle date and hour changes.
	Update(ctx context.Context, cycle *domain.LicenseCycle) error

	// Delete deletes a cycle. Its allocations must be removed first.
	Delete(ctx context.Context, id uuid.UUID) error
}

// =============================================================================
// Course Credit Repository
// =============================================================================

// CourseCreditRepository defines the interface for course credit data access.
type CourseCreditRepository interface {
	// Create creates a new course credit.
	Create(ctx context.Context, course *domain.CourseCredit) error

	// GetByID retrieves a course owned by the given user.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.CourseCredit, error)

	// ListByUser returns the user's courses ordered by completed_at
	// descending, optionally restricted to a completion date window.
	ListByUser(ctx context.Context, userID uuid.UUID, from, to *domain.Date) ([]*domain.CourseCredit, error)

	// Update persists course changes.
	Update(ctx context.Context, course *domain.CourseCredit) error

	// Delete deletes a course. Allocations and certificates go first.
	Delete(ctx context.Context, id uuid.UUID) error
}

// =============================================================================
// Credit Allocation Repository
// =============================================================================

// AllocationCourseRow is an allocation joined with its course and the
// receiving cycle's state scope. Input to the progress and timeline engines.
type AllocationCourseRow struct {
	CycleID    uuid.UUID
	Course     domain.CourseCredit
	StateCode  string
	CycleStart domain.Date
	CycleEnd   domain.Date
}

// CreditAllocationRepository defines the interface for allocation data access.
type CreditAllocationRepository interface {
	// Create creates a new allocation.
	// Returns domain.ErrAllocationExists on a duplicate (course, cycle).
	Create(ctx context.Context, allocation *domain.CreditAllocation) error

	// GetByID retrieves an allocation whose course and cycle are both owned
	// by the given user.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.CreditAllocation, error)

	// List returns the user's allocations, optionally filtered by course
	// and/or cycle. Both sides of the join are scoped to the user.
	List(ctx context.Context, userID uuid.UUID, courseID, cycleID *uuid.UUID) ([]*domain.CreditAllocation, error)

	// ExistingCycleIDs returns the subset of cycle ids already holding an
	// allocation for the course.
	ExistingCycleIDs(ctx context.Context, courseID uuid.UUID, cycleIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)

	// ListJoined returns the user's allocations for the given cycles, joined
	// with course data and cycle state scope.
	ListJoined(ctx context.Context, userID uuid.UUID, cycleIDs []uuid.UUID) ([]AllocationCourseRow, error)

	// Delete deletes an allocation by id.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByCourse deletes all allocations referencing a course.
	DeleteByCourse(ctx context.Context, courseID uuid.UUID) error

	// DeleteByCycle deletes all allocations referencing a cycle.
	DeleteByCycle(ctx context.Context, cycleID uuid.UUID) error
}

// =============================================================================
// Certificate Repository
// =============================================================================

// CertificateRepository defines the interface for certificate data access.
type CertificateRepository interface {
	// Create creates a new certificate row.
	Create(ctx context.Context, cert *domain.Certificate) error

	// GetByID retrieves a certificate owned (via its course) by the user.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Certificate, error)

	// ListByCourse returns a course's certificates.
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*domain.Certificate, error)

	// ListByCourses returns certificates for any of the given courses,
	// keyed by course id.
	ListByCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID][]*domain.Certificate, error)

	// ListBlobPathsByCourse returns the blob paths of a course's certificates.
	ListBlobPathsByCourse(ctx context.Context, courseID uuid.UUID) ([]string, error)

	// Delete deletes a certificate row.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByCourse deletes all certificate rows of a course.
	DeleteByCourse(ctx context.Context, courseID uuid.UUID) error
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager executes a function within one storage transaction. The
// transaction travels in the context; repository methods pick it up
// transparently, so service code composes reads and writes without
// threading transaction handles around.
type TxManager interface {
	// WithTx runs fn inside a transaction. A returned error rolls back;
	// success commits.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories bundles all repository instances behind one handle.
type Repositories struct {
	Users        UserRepository
	Licenses     StateLicenseRepository
	Cycles       LicenseCycleRepository
	Courses      CourseCreditRepository
	Allocations  CreditAllocationRepository
	Certificates CertificateRepository
	Tx           TxManager
}

// DatabaseHealth is the minimal health surface exposed by a database handle.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
