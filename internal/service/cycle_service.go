package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// CycleService manages license renewal cycles.
type CycleService struct {
	licenseRepo    repository.StateLicenseRepository
	cycleRepo      repository.LicenseCycleRepository
	allocationRepo repository.CreditAllocationRepository
	tx             repository.TxManager
	logger         zerolog.Logger
}

// NewCycleService creates a new CycleService.
func NewCycleService(
	licenseRepo repository.StateLicenseRepository,
	cycleRepo repository.LicenseCycleRepository,
	allocationRepo repository.CreditAllocationRepository,
	tx repository.TxManager,
	logger zerolog.Logger,
) *CycleService {
	return &CycleService{
		licenseRepo:    licenseRepo,
		cycleRepo:      cycleRepo,
		allocationRepo: allocationRepo,
		tx:             tx,
		logger:         logger.With().Str("service", "cycle").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// CreateCycleInput contains the fields for opening a renewal cycle.
type CreateCycleInput struct {
	UserID         uuid.UUID
	StateLicenseID uuid.UUID
	CycleStart     domain.Date
	CycleEnd       domain.Date
	RequiredHours  decimal.Decimal
}

// UpdateCycleInput carries a partial cycle update. Set* flags mark which
// fields were supplied.
type UpdateCycleInput struct {
	UserID           uuid.UUID
	CycleID          uuid.UUID
	CycleStart       *domain.Date
	CycleEnd         *domain.Date
	RequiredHours    *decimal.Decimal
	SetCycleStart    bool
	SetCycleEnd      bool
	SetRequiredHours bool
}

// ListCyclesInput filters the user's cycles.
type ListCyclesInput struct {
	UserID         uuid.UUID
	StateLicenseID *uuid.UUID
}

// =============================================================================
// Service Methods
// =============================================================================

// CreateCycle opens a renewal cycle under one of the user's licenses.
func (s *CycleService) CreateCycle(ctx context.Context, input CreateCycleInput) (*domain.LicenseCycle, error) {
	if _, err := s.licenseRepo.GetByID(ctx, input.UserID, input.StateLicenseID); err != nil {
		if errors.Is(err, domain.ErrStateLicenseNotFound) {
			return nil, domain.ErrStateLicenseNotFound
		}
		s.logger.Error().Err(err).Msg("failed to get state license")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := domain.ValidateCycleDates(input.CycleStart, input.CycleEnd); err != nil {
		return nil, err
	}
	if err := domain.ValidateRequiredHours(input.RequiredHours); err != nil {
		return nil, err
	}

	cycle := domain.NewLicenseCycle(input.StateLicenseID, input.CycleStart, input.CycleEnd, input.RequiredHours)
	if err := s.cycleRepo.Create(ctx, cycle); err != nil {
		s.logger.Error().Err(err).Msg("failed to create cycle")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("cycle_id", cycle.ID.String()).
		Str("license_id", input.StateLicenseID.String()).
		Msg("cycle created")

	return cycle, nil
}

// GetCycle retrieves one of the user's cycles.
func (s *CycleService) GetCycle(ctx context.Context, userID, cycleID uuid.UUID) (*domain.LicenseCycle, error) {
	cycle, err := s.cycleRepo.GetByID(ctx, userID, cycleID)
	if err != nil {
		if errors.Is(err, domain.ErrLicenseCycleNotFound) {
			return nil, domain.ErrLicenseCycleNotFound
		}
		s.logger.Error().Err(err).Str("cycle_id", cycleID.String()).Msg("failed to get cycle")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return cycle, nil
}

// ListCycles returns the user's cycles ordered by end date, optionally
// restricted to one license.
func (s *CycleService) ListCycles(ctx context.Context, input ListCyclesInput) ([]*domain.LicenseCycle, error) {
	cycles, err := s.cycleRepo.ListByUser(ctx, input.UserID, input.StateLicenseID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list cycles")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return cycles, nil
}

// UpdateCycle applies a partial update and revalidates the combined state.
func (s *CycleService) UpdateCycle(ctx context.Context, input UpdateCycleInput) (*domain.LicenseCycle, error) {
	cycle, err := s.GetCycle(ctx, input.UserID, input.CycleID)
	if err != nil {
		return nil, err
	}

	if input.SetCycleStart {
		if input.CycleStart == nil {
			return nil, domain.NewValidationError("cycle_start", "cycle_start cannot be null")
		}
		cycle.CycleStart = *input.CycleStart
	}
	if input.SetCycleEnd {
		if input.CycleEnd == nil {
			return nil, domain.NewValidationError("cycle_end", "cycle_end cannot be null")
		}
		cycle.CycleEnd = *input.CycleEnd
	}
	if input.SetRequiredHours {
		if input.RequiredHours == nil {
			return nil, domain.NewValidationError("required_hours", "required_hours cannot be null")
		}
		cycle.RequiredHours = *input.RequiredHours
	}

	if err := domain.ValidateCycleDates(cycle.CycleStart, cycle.CycleEnd); err != nil {
		return nil, err
	}
	if err := domain.ValidateRequiredHours(cycle.RequiredHours); err != nil {
		return nil, err
	}

	if err := s.cycleRepo.Update(ctx, cycle); err != nil {
		if errors.Is(err, domain.ErrLicenseCycleNotFound) {
			return nil, domain.ErrLicenseCycleNotFound
		}
		s.logger.Error().Err(err).Str("cycle_id", input.CycleID.String()).Msg("failed to update cycle")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return cycle, nil
}

// DeleteCycle removes a cycle together with its hour allocations.
func (s *CycleService) DeleteCycle(ctx context.Context, userID, cycleID uuid.UUID) error {
	if _, err := s.GetCycle(ctx, userID, cycleID); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.allocationRepo.DeleteByCycle(ctx, cycleID); err != nil {
			return fmt.Errorf("failed to delete allocations: %w", err)
		}
		if err := s.cycleRepo.Delete(ctx, cycleID); err != nil {
			return fmt.Errorf("failed to delete cycle: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLicenseCycleNotFound) {
			return domain.ErrLicenseCycleNotFound
		}
		s.logger.Error().Err(err).Str("cycle_id", cycleID.String()).Msg("failed to delete cycle")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("cycle_id", cycleID.String()).Msg("cycle deleted")
	return nil
}
