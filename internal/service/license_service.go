package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// LicenseService manages per-state professional licenses.
type LicenseService struct {
	licenseRepo repository.StateLicenseRepository
	cycleRepo   repository.LicenseCycleRepository
	logger      zerolog.Logger
}

// NewLicenseService creates a new LicenseService.
func NewLicenseService(
	licenseRepo repository.StateLicenseRepository,
	cycleRepo repository.LicenseCycleRepository,
	logger zerolog.Logger,
) *LicenseService {
	return &LicenseService{
		licenseRepo: licenseRepo,
		cycleRepo:   cycleRepo,
		logger:      logger.With().Str("service", "license").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// CreateLicenseInput contains the fields for registering a state license.
type CreateLicenseInput struct {
	UserID        uuid.UUID
	StateCode     string
	LicenseNumber *string
}

// UpdateLicenseInput carries a partial license update. A nil field is left
// untouched; SetLicenseNumber with a nil LicenseNumber clears the number.
type UpdateLicenseInput struct {
	UserID           uuid.UUID
	LicenseID        uuid.UUID
	LicenseNumber    *string
	SetLicenseNumber bool
}

// =============================================================================
// Service Methods
// =============================================================================

// CreateLicense registers a license for a state. Each user holds at most one
// license per state code.
func (s *LicenseService) CreateLicense(ctx context.Context, input CreateLicenseInput) (*domain.StateLicense, error) {
	stateCode, err := domain.NormalizeStateCode(input.StateCode)
	if err != nil {
		return nil, err
	}

	license := domain.NewStateLicense(input.UserID, stateCode, input.LicenseNumber)
	if err := s.licenseRepo.Create(ctx, license); err != nil {
		if errors.Is(err, domain.ErrStateLicenseExists) {
			return nil, domain.ErrStateLicenseExists
		}
		s.logger.Error().Err(err).Msg("failed to create state license")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("license_id", license.ID.String()).
		Str("state_code", license.StateCode).
		Msg("state license created")

	return license, nil
}

// GetLicense retrieves one of the user's licenses.
func (s *LicenseService) GetLicense(ctx context.Context, userID, licenseID uuid.UUID) (*domain.StateLicense, error) {
	license, err := s.licenseRepo.GetByID(ctx, userID, licenseID)
	if err != nil {
		if errors.Is(err, domain.ErrStateLicenseNotFound) {
			return nil, domain.ErrStateLicenseNotFound
		}
		s.logger.Error().Err(err).Str("license_id", licenseID.String()).Msg("failed to get state license")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return license, nil
}

// ListLicenses returns the user's licenses ordered by state code.
func (s *LicenseService) ListLicenses(ctx context.Context, userID uuid.UUID) ([]*domain.StateLicense, error) {
	licenses, err := s.licenseRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list state licenses")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return licenses, nil
}

// UpdateLicense applies a partial update to a license.
func (s *LicenseService) UpdateLicense(ctx context.Context, input UpdateLicenseInput) (*domain.StateLicense, error) {
	license, err := s.licenseRepo.GetByID(ctx, input.UserID, input.LicenseID)
	if err != nil {
		if errors.Is(err, domain.ErrStateLicenseNotFound) {
			return nil, domain.ErrStateLicenseNotFound
		}
		s.logger.Error().Err(err).Str("license_id", input.LicenseID.String()).Msg("failed to get state license")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if input.SetLicenseNumber {
		license.LicenseNumber = input.LicenseNumber
	}

	if err := s.licenseRepo.Update(ctx, license); err != nil {
		if errors.Is(err, domain.ErrStateLicenseNotFound) {
			return nil, domain.ErrStateLicenseNotFound
		}
		s.logger.Error().Err(err).Str("license_id", input.LicenseID.String()).Msg("failed to update state license")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return license, nil
}

// DeleteLicense removes a license. Licenses with renewal cycles cannot be
// deleted; the cycles must go first.
func (s *LicenseService) DeleteLicense(ctx context.Context, userID, licenseID uuid.UUID) error {
	if _, err := s.GetLicense(ctx, userID, licenseID); err != nil {
		return err
	}

	count, err := s.cycleRepo.CountByLicense(ctx, licenseID)
	if err != nil {
		s.logger.Error().Err(err).Str("license_id", licenseID.String()).Msg("failed to count cycles")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if count > 0 {
		return domain.ErrStateLicenseHasCycles
	}

	if err := s.licenseRepo.Delete(ctx, userID, licenseID); err != nil {
		if errors.Is(err, domain.ErrStateLicenseNotFound) {
			return domain.ErrStateLicenseNotFound
		}
		s.logger.Error().Err(err).Str("license_id", licenseID.String()).Msg("failed to delete state license")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("license_id", licenseID.String()).Msg("state license deleted")
	return nil
}
