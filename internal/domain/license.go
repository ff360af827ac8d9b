package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var stateCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// NormalizeStateCode uppercases a state code and validates the result
// against ^[A-Z]{2}$. Storage only ever sees the normalized form.
func NormalizeStateCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !stateCodePattern.MatchString(normalized) {
		return "", NewValidationError("state_code", "must be two letters")
	}
	return normalized, nil
}

// StateLicense is one professional license held by a user in one US state.
// A user holds at most one license per state code.
type StateLicense struct {
	// ID is the unique identifier for this license.
	ID uuid.UUID `json:"id"`

	// UserID is the owning user.
	UserID uuid.UUID `json:"-"`

	// StateCode is the two-letter uppercase state code.
	StateCode string `json:"state_code"`

	// LicenseNumber is the state-issued license number, if recorded.
	LicenseNumber *string `json:"license_number"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStateLicense creates a license for an already-normalized state code.
func NewStateLicense(userID uuid.UUID, stateCode string, licenseNumber *string) *StateLicense {
	now := time.Now().UTC()
	return &StateLicense{
		ID:            uuid.New(),
		UserID:        userID,
		StateCode:     stateCode,
		LicenseNumber: licenseNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// LicenseCycle is one renewal cycle of a state license: a date window in
// which a required number of CE hours must be earned.
type LicenseCycle struct {
	// ID is the unique identifier for this cycle.
	ID uuid.UUID `json:"id"`

	// StateLicenseID is the parent license.
	StateLicenseID uuid.UUID `json:"state_license_id"`

	// CycleStart is the first day of the cycle.
	CycleStart Date `json:"cycle_start"`

	// CycleEnd is the last day of the cycle. Strictly after CycleStart.
	CycleEnd Date `json:"cycle_end"`

	// RequiredHours is the CE hour requirement for this cycle. Positive.
	RequiredHours decimal.Decimal `json:"required_hours"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLicenseCycle creates a cycle; callers validate dates and hours first.
func NewLicenseCycle(stateLicenseID uuid.UUID, start, end Date, requiredHours decimal.Decimal) *LicenseCycle {
	now := time.Now().UTC()
	return &LicenseCycle{
		ID:             uuid.New(),
		StateLicenseID: stateLicenseID,
		CycleStart:     start,
		CycleEnd:       end,
		RequiredHours:  requiredHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Contains reports whether the date falls inside [CycleStart, CycleEnd].
func (c *LicenseCycle) Contains(d Date) bool {
	return !d.Before(c.CycleStart) && !d.After(c.CycleEnd)
}

// Overlaps reports whether the cycle's window intersects [rangeStart, rangeEnd].
func (c *LicenseCycle) Overlaps(rangeStart, rangeEnd Date) bool {
	return !(c.CycleEnd.Before(rangeStart) || c.CycleStart.After(rangeEnd))
}

// ValidateCycleDates checks that the cycle end is strictly after the start.
func ValidateCycleDates(start, end Date) error {
	if !end.After(start) {
		return NewValidationError("cycle_end", "must be after cycle_start")
	}
	return nil
}

// ValidateRequiredHours checks that the hour requirement is positive.
func ValidateRequiredHours(hours decimal.Decimal) error {
	if hours.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("required_hours", "must be greater than 0")
	}
	return nil
}
