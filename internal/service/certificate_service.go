package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
	"github.com/prn-tf/cetrack/internal/storage"
)

// CertificateService manages certificate uploads attached to courses. The
// blob lives in the storage backend, the metadata row in the database.
type CertificateService struct {
	courseRepo      repository.CourseCreditRepository
	certificateRepo repository.CertificateRepository
	blobs           storage.Backend
	logger          zerolog.Logger
}

// NewCertificateService creates a new CertificateService.
func NewCertificateService(
	courseRepo repository.CourseCreditRepository,
	certificateRepo repository.CertificateRepository,
	blobs storage.Backend,
	logger zerolog.Logger,
) *CertificateService {
	return &CertificateService{
		courseRepo:      courseRepo,
		certificateRepo: certificateRepo,
		blobs:           blobs,
		logger:          logger.With().Str("service", "certificate").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// UploadCertificateInput carries one uploaded file.
type UploadCertificateInput struct {
	UserID      uuid.UUID
	CourseID    uuid.UUID
	Filename    string
	ContentType *string
	Content     io.Reader
}

// DownloadCertificateOutput contains the blob stream and its metadata. The
// caller must close Content.
type DownloadCertificateOutput struct {
	Certificate *domain.Certificate
	Content     io.ReadCloser
}

// =============================================================================
// Service Methods
// =============================================================================

// UploadCertificate stores the blob and records the certificate against the
// course. If the metadata insert fails the stored blob is removed again.
func (s *CertificateService) UploadCertificate(ctx context.Context, input UploadCertificateInput) (*domain.Certificate, error) {
	if _, err := s.courseRepo.GetByID(ctx, input.UserID, input.CourseID); err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		s.logger.Error().Err(err).Msg("failed to get course")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	filename := input.Filename
	if filename == "" {
		filename = "certificate"
	}

	blobPath := storage.NewBlobPath(input.CourseID, filename)
	size, err := s.blobs.Save(ctx, blobPath, input.Content)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return nil, domain.ErrStorageUnavailable
		}
		s.logger.Error().Err(err).Str("blob_path", blobPath).Msg("failed to save certificate blob")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	cert := domain.NewCertificate(input.CourseID, filename, input.ContentType, size, blobPath)
	if err := s.certificateRepo.Create(ctx, cert); err != nil {
		if delErr := s.blobs.Delete(ctx, blobPath); delErr != nil {
			s.logger.Warn().Err(delErr).Str("blob_path", blobPath).Msg("failed to delete orphaned blob")
		}
		s.logger.Error().Err(err).Msg("failed to create certificate")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("certificate_id", cert.ID.String()).
		Str("course_id", input.CourseID.String()).
		Int64("size_bytes", size).
		Msg("certificate uploaded")

	return cert, nil
}

// DownloadCertificate streams a stored certificate back.
func (s *CertificateService) DownloadCertificate(ctx context.Context, userID, certificateID uuid.UUID) (*DownloadCertificateOutput, error) {
	cert, err := s.certificateRepo.GetByID(ctx, userID, certificateID)
	if err != nil {
		if errors.Is(err, domain.ErrCertificateNotFound) {
			return nil, domain.ErrCertificateNotFound
		}
		s.logger.Error().Err(err).Str("certificate_id", certificateID.String()).Msg("failed to get certificate")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	content, err := s.blobs.Load(ctx, cert.BlobPath)
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			return nil, domain.ErrBlobNotFound
		}
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return nil, domain.ErrStorageUnavailable
		}
		s.logger.Error().Err(err).Str("blob_path", cert.BlobPath).Msg("failed to load certificate blob")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &DownloadCertificateOutput{Certificate: cert, Content: content}, nil
}

// ListCertificates returns the certificates attached to one of the user's
// courses.
func (s *CertificateService) ListCertificates(ctx context.Context, userID, courseID uuid.UUID) ([]*domain.Certificate, error) {
	if _, err := s.courseRepo.GetByID(ctx, userID, courseID); err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		s.logger.Error().Err(err).Msg("failed to get course")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	certs, err := s.certificateRepo.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Error().Err(err).Str("course_id", courseID.String()).Msg("failed to list certificates")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return certs, nil
}

// DeleteCertificate removes the metadata row, then the blob best effort.
func (s *CertificateService) DeleteCertificate(ctx context.Context, userID, certificateID uuid.UUID) error {
	cert, err := s.certificateRepo.GetByID(ctx, userID, certificateID)
	if err != nil {
		if errors.Is(err, domain.ErrCertificateNotFound) {
			return domain.ErrCertificateNotFound
		}
		s.logger.Error().Err(err).Str("certificate_id", certificateID.String()).Msg("failed to get certificate")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.certificateRepo.Delete(ctx, certificateID); err != nil {
		if errors.Is(err, domain.ErrCertificateNotFound) {
			return domain.ErrCertificateNotFound
		}
		s.logger.Error().Err(err).Str("certificate_id", certificateID.String()).Msg("failed to delete certificate")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.blobs.Delete(ctx, cert.BlobPath); err != nil {
		s.logger.Warn().Err(err).Str("blob_path", cert.BlobPath).Msg("failed to delete certificate blob")
	}

	s.logger.Info().Str("certificate_id", certificateID.String()).Msg("certificate deleted")
	return nil
}
