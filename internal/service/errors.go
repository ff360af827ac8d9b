// Package service provides business logic services for CE Track.
package service

import "errors"

// Common service errors.
var (
	// ErrInternalError wraps unexpected storage or infrastructure failures.
	// The underlying cause is logged; callers see an opaque error.
	ErrInternalError = errors.New("internal server error")

	// ErrIdentityMissing means no external user id was resolved for the
	// request.
	ErrIdentityMissing = errors.New("not authenticated")
)
