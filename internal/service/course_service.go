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
	"github.com/prn-tf/cetrack/internal/storage"
)

// CourseService manages completed CE courses. New courses are allocated
// automatically to every open cycle whose window contains the completion
// date.
type CourseService struct {
	courseRepo      repository.CourseCreditRepository
	cycleRepo       repository.LicenseCycleRepository
	allocationRepo  repository.CreditAllocationRepository
	certificateRepo repository.CertificateRepository
	blobs           storage.Backend
	tx              repository.TxManager
	logger          zerolog.Logger
}

// NewCourseService creates a new CourseService.
func NewCourseService(
	courseRepo repository.CourseCreditRepository,
	cycleRepo repository.LicenseCycleRepository,
	allocationRepo repository.CreditAllocationRepository,
	certificateRepo repository.CertificateRepository,
	blobs storage.Backend,
	tx repository.TxManager,
	logger zerolog.Logger,
) *CourseService {
	return &CourseService{
		courseRepo:      courseRepo,
		cycleRepo:       cycleRepo,
		allocationRepo:  allocationRepo,
		certificateRepo: certificateRepo,
		blobs:           blobs,
		tx:              tx,
		logger:          logger.With().Str("service", "course").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// CreateCourseInput contains the fields for recording a completed course.
type CreateCourseInput struct {
	UserID      uuid.UUID
	Title       string
	Provider    *string
	CompletedAt domain.Date
	Hours       decimal.Decimal
}

// UpdateCourseInput carries a partial course update. Set* flags mark which
// fields were supplied; provider may be cleared, the rest may not.
type UpdateCourseInput struct {
	UserID         uuid.UUID
	CourseID       uuid.UUID
	Title          *string
	Provider       *string
	CompletedAt    *domain.Date
	Hours          *decimal.Decimal
	SetTitle       bool
	SetProvider    bool
	SetCompletedAt bool
	SetHours       bool
}

// ListCoursesInput filters the user's courses by completion date.
type ListCoursesInput struct {
	UserID uuid.UUID
	From   *domain.Date
	To     *domain.Date
}

// =============================================================================
// Service Methods
// =============================================================================

// CreateCourse records a completed course and allocates its hours to every
// cycle containing the completion date, in one transaction.
func (s *CourseService) CreateCourse(ctx context.Context, input CreateCourseInput) (*domain.CourseCredit, error) {
	if err := domain.ValidateCourseHours(input.Hours); err != nil {
		return nil, err
	}

	course := domain.NewCourseCredit(input.UserID, input.Title, input.Provider, input.CompletedAt, input.Hours)

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.courseRepo.Create(ctx, course); err != nil {
			return fmt.Errorf("failed to create course: %w", err)
		}

		cycleIDs, err := s.cycleRepo.ListContaining(ctx, input.UserID, input.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to list containing cycles: %w", err)
		}
		for _, cycleID := range cycleIDs {
			alloc := domain.NewCreditAllocation(course.ID, cycleID)
			if err := s.allocationRepo.Create(ctx, alloc); err != nil {
				return fmt.Errorf("failed to allocate course: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create course")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("course_id", course.ID.String()).
		Str("completed_at", course.CompletedAt.String()).
		Msg("course created")

	return course, nil
}

// GetCourse retrieves one of the user's courses.
func (s *CourseService) GetCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseCredit, error) {
	course, err := s.courseRepo.GetByID(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		s.logger.Error().Err(err).Str("course_id", courseID.String()).Msg("failed to get course")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return course, nil
}

// ListCourses returns the user's courses, most recently completed first.
func (s *CourseService) ListCourses(ctx context.Context, input ListCoursesInput) ([]*domain.CourseCredit, error) {
	courses, err := s.courseRepo.ListByUser(ctx, input.UserID, input.From, input.To)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list courses")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return courses, nil
}

// UpdateCourse applies a partial update. Changing the completion date does
// not re-run auto-allocation; allocations are managed explicitly after
// creation.
func (s *CourseService) UpdateCourse(ctx context.Context, input UpdateCourseInput) (*domain.CourseCredit, error) {
	course, err := s.GetCourse(ctx, input.UserID, input.CourseID)
	if err != nil {
		return nil, err
	}

	if input.SetTitle {
		if input.Title == nil {
			return nil, domain.NewValidationError("title", "title cannot be null")
		}
		course.Title = *input.Title
	}
	if input.SetProvider {
		course.Provider = input.Provider
	}
	if input.SetCompletedAt {
		if input.CompletedAt == nil {
			return nil, domain.NewValidationError("completed_at", "completed_at cannot be null")
		}
		course.CompletedAt = *input.CompletedAt
	}
	if input.SetHours {
		if input.Hours == nil {
			return nil, domain.NewValidationError("hours", "hours cannot be null")
		}
		course.Hours = *input.Hours
	}

	if err := domain.ValidateCourseHours(course.Hours); err != nil {
		return nil, err
	}

	if err := s.courseRepo.Update(ctx, course); err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		s.logger.Error().Err(err).Str("course_id", input.CourseID.String()).Msg("failed to update course")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return course, nil
}

// DeleteCourse removes a course, its allocations and its certificates. Blob
// deletion happens after the commit and is best effort.
func (s *CourseService) DeleteCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	if _, err := s.GetCourse(ctx, userID, courseID); err != nil {
		return err
	}

	var blobPaths []string
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		paths, err := s.certificateRepo.ListBlobPathsByCourse(ctx, courseID)
		if err != nil {
			return fmt.Errorf("failed to list certificate blobs: %w", err)
		}
		blobPaths = paths

		if err := s.allocationRepo.DeleteByCourse(ctx, courseID); err != nil {
			return fmt.Errorf("failed to delete allocations: %w", err)
		}
		if err := s.certificateRepo.DeleteByCourse(ctx, courseID); err != nil {
			return fmt.Errorf("failed to delete certificates: %w", err)
		}
		if err := s.courseRepo.Delete(ctx, courseID); err != nil {
			return fmt.Errorf("failed to delete course: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return domain.ErrCourseNotFound
		}
		s.logger.Error().Err(err).Str("course_id", courseID.String()).Msg("failed to delete course")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	for _, path := range blobPaths {
		if err := s.blobs.Delete(ctx, path); err != nil {
			s.logger.Warn().Err(err).Str("blob_path", path).Msg("failed to delete certificate blob")
		}
	}

	s.logger.Info().Str("course_id", courseID.String()).Msg("course deleted")
	return nil
}
