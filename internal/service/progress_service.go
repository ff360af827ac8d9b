package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// ProgressService computes per-cycle compliance snapshots. Nothing here is
// persisted; every call derives fresh figures from the stored allocations.
type ProgressService struct {
	cycleRepo      repository.LicenseCycleRepository
	allocationRepo repository.CreditAllocationRepository
	logger         zerolog.Logger
}

// NewProgressService creates a new ProgressService.
func NewProgressService(
	cycleRepo repository.LicenseCycleRepository,
	allocationRepo repository.CreditAllocationRepository,
	logger zerolog.Logger,
) *ProgressService {
	return &ProgressService{
		cycleRepo:      cycleRepo,
		allocationRepo: allocationRepo,
		logger:         logger.With().Str("service", "progress").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// GetProgressInput identifies the user and the reference date the figures
// are computed against.
type GetProgressInput struct {
	UserID uuid.UUID
	Today  domain.Date
}

// =============================================================================
// Service Methods
// =============================================================================

// GetProgress returns one compliance snapshot per cycle the user owns,
// ordered by cycle end ascending.
func (s *ProgressService) GetProgress(ctx context.Context, input GetProgressInput) ([]domain.Snapshot, error) {
	cycles, err := s.cycleRepo.ListWithState(ctx, input.UserID, nil, nil, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list cycles")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	cycleIDs := make([]uuid.UUID, len(cycles))
	for i, c := range cycles {
		cycleIDs[i] = c.Cycle.ID
	}

	rows, err := s.allocationRepo.ListJoined(ctx, input.UserID, cycleIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list allocations")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	earned := make(map[uuid.UUID]decimal.Decimal, len(cycles))
	refs := make([]domain.AllocationRef, 0, len(rows))
	for _, row := range rows {
		earned[row.CycleID] = earned[row.CycleID].Add(row.Course.Hours)
		refs = append(refs, domain.AllocationRef{
			StateCode:   row.StateCode,
			CourseID:    row.Course.ID,
			CourseTitle: row.Course.Title,
			CycleID:     row.CycleID,
		})
	}
	warnings := domain.DetectCrossCycleWarnings(refs)

	snapshots := make([]domain.Snapshot, 0, len(cycles))
	for _, c := range cycles {
		progress := domain.ComputeProgress(c.Cycle.RequiredHours, earned[c.Cycle.ID], c.Cycle.CycleEnd, input.Today)
		cycleWarnings := warnings[c.Cycle.ID]
		if cycleWarnings == nil {
			cycleWarnings = []domain.Warning{}
		}
		snapshots = append(snapshots, domain.Snapshot{
			CycleID:        c.Cycle.ID,
			StateCode:      c.StateCode,
			CycleStart:     c.Cycle.CycleStart,
			CycleEnd:       c.Cycle.CycleEnd,
			RequiredHours:  c.Cycle.RequiredHours,
			EarnedHours:    progress.EarnedHours,
			RemainingHours: progress.RemainingHours,
			Percent:        progress.Percent,
			DaysRemaining:  progress.DaysRemaining,
			Status:         progress.Status,
			Warnings:       cycleWarnings,
		})
	}

	slices.SortStableFunc(snapshots, func(a, b domain.Snapshot) int {
		return a.CycleEnd.Compare(b.CycleEnd.Time)
	})

	return snapshots, nil
}
