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

// AllocationService manages the many-to-many links between courses and
// renewal cycles.
type AllocationService struct {
	courseRepo     repository.CourseCreditRepository
	cycleRepo      repository.LicenseCycleRepository
	allocationRepo repository.CreditAllocationRepository
	tx             repository.TxManager
	logger         zerolog.Logger
}

// NewAllocationService creates a new AllocationService.
func NewAllocationService(
	courseRepo repository.CourseCreditRepository,
	cycleRepo repository.LicenseCycleRepository,
	allocationRepo repository.CreditAllocationRepository,
	tx repository.TxManager,
	logger zerolog.Logger,
) *AllocationService {
	return &AllocationService{
		courseRepo:     courseRepo,
		cycleRepo:      cycleRepo,
		allocationRepo: allocationRepo,
		tx:             tx,
		logger:         logger.With().Str("service", "allocation").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// CreateAllocationInput links one course to one cycle.
type CreateAllocationInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	CycleID  uuid.UUID
}

// BulkAllocateInput links one course to several cycles at once.
type BulkAllocateInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	CycleIDs []uuid.UUID
}

// BulkAllocateOutput reports which cycles received a new allocation and
// which already had one.
type BulkAllocateOutput struct {
	Created []*domain.CreditAllocation
	Skipped []uuid.UUID
}

// ListAllocationsInput filters the user's allocations.
type ListAllocationsInput struct {
	UserID   uuid.UUID
	CourseID *uuid.UUID
	CycleID  *uuid.UUID
}

// =============================================================================
// Service Methods
// =============================================================================

// CreateAllocation links a course to a cycle. Both must belong to the user.
func (s *AllocationService) CreateAllocation(ctx context.Context, input CreateAllocationInput) (*domain.CreditAllocation, error) {
	if _, err := s.courseRepo.GetByID(ctx, input.UserID, input.CourseID); err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		s.logger.Error().Err(err).Msg("failed to get course")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if _, err := s.cycleRepo.GetByID(ctx, input.UserID, input.CycleID); err != nil {
		if errors.Is(err, domain.ErrLicenseCycleNotFound) {
			return nil, domain.ErrLicenseCycleNotFound
		}
		s.logger.Error().Err(err).Msg("failed to get cycle")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	alloc := domain.NewCreditAllocation(input.CourseID, input.CycleID)
	if err := s.allocationRepo.Create(ctx, alloc); err != nil {
		if errors.Is(err, domain.ErrAllocationExists) {
			return nil, domain.ErrAllocationExists
		}
		s.logger.Error().Err(err).Msg("failed to create allocation")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("course_id", input.CourseID.String()).
		Str("cycle_id", input.CycleID.String()).
		Msg("allocation created")

	return alloc, nil
}

// BulkAllocate links a course to several cycles. Duplicate cycle ids in the
// request collapse to their first occurrence. Every cycle must belong to the
// user or the whole request fails. Cycles already linked to the course are
// reported as skipped.
func (s *AllocationService) BulkAllocate(ctx context.Context, input BulkAllocateInput) (*BulkAllocateOutput, error) {
	if _, err := s.courseRepo.GetByID(ctx, input.UserID, input.CourseID); err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		s.logger.Error().Err(err).Msg("failed to get course")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	seen := make(map[uuid.UUID]struct{}, len(input.CycleIDs))
	cycleIDs := make([]uuid.UUID, 0, len(input.CycleIDs))
	for _, id := range input.CycleIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cycleIDs = append(cycleIDs, id)
	}

	if len(cycleIDs) == 0 {
		return &BulkAllocateOutput{
			Created: []*domain.CreditAllocation{},
			Skipped: []uuid.UUID{},
		}, nil
	}

	owned, err := s.cycleRepo.ListOwnedIDs(ctx, input.UserID, cycleIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check cycle ownership")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if len(owned) != len(cycleIDs) {
		return nil, domain.ErrLicenseCycleNotFound
	}

	existing, err := s.allocationRepo.ExistingCycleIDs(ctx, input.CourseID, cycleIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check existing allocations")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	output := &BulkAllocateOutput{
		Created: []*domain.CreditAllocation{},
		Skipped: []uuid.UUID{},
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, cycleID := range cycleIDs {
			if _, ok := existing[cycleID]; ok {
				output.Skipped = append(output.Skipped, cycleID)
				continue
			}
			alloc := domain.NewCreditAllocation(input.CourseID, cycleID)
			if err := s.allocationRepo.Create(ctx, alloc); err != nil {
				return fmt.Errorf("failed to create allocation: %w", err)
			}
			output.Created = append(output.Created, alloc)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to bulk allocate")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("course_id", input.CourseID.String()).
		Int("created", len(output.Created)).
		Int("skipped", len(output.Skipped)).
		Msg("bulk allocation completed")

	return output, nil
}

// ListAllocations returns the user's allocations, optionally filtered by
// course or cycle.
func (s *AllocationService) ListAllocations(ctx context.Context, input ListAllocationsInput) ([]*domain.CreditAllocation, error) {
	allocs, err := s.allocationRepo.List(ctx, input.UserID, input.CourseID, input.CycleID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list allocations")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return allocs, nil
}

// DeleteAllocation unlinks a course from a cycle.
func (s *AllocationService) DeleteAllocation(ctx context.Context, userID, allocationID uuid.UUID) error {
	if _, err := s.allocationRepo.GetByID(ctx, userID, allocationID); err != nil {
		if errors.Is(err, domain.ErrAllocationNotFound) {
			return domain.ErrAllocationNotFound
		}
		s.logger.Error().Err(err).Str("allocation_id", allocationID.String()).Msg("failed to get allocation")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.allocationRepo.Delete(ctx, allocationID); err != nil {
		if errors.Is(err, domain.ErrAllocationNotFound) {
			return domain.ErrAllocationNotFound
		}
		s.logger.Error().Err(err).Str("allocation_id", allocationID.String()).Msg("failed to delete allocation")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("allocation_id", allocationID.String()).Msg("allocation deleted")
	return nil
}
