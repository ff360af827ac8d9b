// Package domain contains the core business entities for CE Track.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, blob store, network).

var (
	// ===========================================
	// Not-found errors
	// ===========================================
	// Ownership misses deliberately surface as the same not-found error as a
	// genuinely absent row, so cross-user probes cannot detect existence.

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrStateLicenseNotFound indicates the state license does not exist or is not owned by the caller.
	ErrStateLicenseNotFound = errors.New("state license not found")

	// ErrLicenseCycleNotFound indicates the license cycle does not exist or is not owned by the caller.
	ErrLicenseCycleNotFound = errors.New("license cycle not found")

	// ErrCourseNotFound indicates the course credit does not exist or is not owned by the caller.
	ErrCourseNotFound = errors.New("course not found")

	// ErrAllocationNotFound indicates the credit allocation does not exist or is not owned by the caller.
	ErrAllocationNotFound = errors.New("allocation not found")

	// ErrCertificateNotFound indicates the certificate does not exist or is not owned by the caller.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ===========================================
	// Conflict errors
	// ===========================================

	// ErrStateLicenseExists indicates the caller already holds a license for this state.
	ErrStateLicenseExists = errors.New("state license already exists for this user and state code")

	// ErrAllocationExists indicates the course is already allocated to this cycle.
	ErrAllocationExists = errors.New("allocation already exists for this course and cycle")

	// ErrStateLicenseHasCycles indicates the license still has cycles and cannot be deleted.
	ErrStateLicenseHasCycles = errors.New("cannot delete state license with existing cycles")

	// ErrUserExists indicates a user with the same external identifier exists.
	ErrUserExists = errors.New("user already exists")

	// ===========================================
	// Blob store errors
	// ===========================================

	// ErrBlobNotFound indicates the certificate blob is missing from the blob store.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrStorageUnavailable indicates the blob backend is unreachable.
	ErrStorageUnavailable = errors.New("blob storage unavailable")
)

// ErrValidation is the sentinel matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a rejected input field.
type ValidationError struct {
	// Field is the offending input field.
	Field string

	// Reason is a human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
