package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity anchor every other entity hangs off.
// Users are created lazily the first time an externally resolved
// identifier is seen.
type User struct {
	// ID is the unique identifier for this user.
	ID uuid.UUID `json:"id"`

	// ExternalUserID is the identifier assigned by the external identity
	// provider. Unique across all users.
	ExternalUserID string `json:"external_user_id"`

	// Email is the user's email address, if the identity provider supplied one.
	Email *string `json:"email"`

	// DisplayName is a human-readable name, if available.
	DisplayName *string `json:"display_name"`

	// CreatedAt is when the user row was first created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the user row was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a User for a freshly seen external identifier.
func NewUser(externalUserID string, email, displayName *string) *User {
	now := time.Now().UTC()
	return &User{
		ID:             uuid.New(),
		ExternalUserID: externalUserID,
		Email:          email,
		DisplayName:    displayName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
