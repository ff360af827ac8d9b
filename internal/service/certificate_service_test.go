package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/cetrack/internal/domain"
)

type certificateFixture struct {
	svc          *CertificateService
	courses      *mockCourseRepo
	certificates *mockCertificateRepo
	blobs        *mockBackend
}

func newCertificateFixture(t *testing.T) *certificateFixture {
	t.Helper()
	courses := newMockCourseRepo()
	certificates := newMockCertificateRepo(courses)
	blobs := newMockBackend()
	return &certificateFixture{
		svc:          NewCertificateService(courses, certificates, blobs, zerolog.Nop()),
		courses:      courses,
		certificates: certificates,
		blobs:        blobs,
	}
}

func (f *certificateFixture) addCourse(userID uuid.UUID) *domain.CourseCredit {
	course := domain.NewCourseCredit(userID, "Ethics", nil,
		domain.NewDate(2024, 6, 1), decimal.NewFromInt(3))
	f.courses.courses[course.ID] = course
	return course
}

// =============================================================================
// UploadCertificate Tests
// =============================================================================

func TestUploadCertificate(t *testing.T) {
	userID := uuid.New()
	f := newCertificateFixture(t)
	course := f.addCourse(userID)

	cert, err := f.svc.UploadCertificate(context.Background(), UploadCertificateInput{
		UserID:      userID,
		CourseID:    course.ID,
		Filename:    "completion.pdf",
		ContentType: strPtr("application/pdf"),
		Content:     strings.NewReader("%PDF-1.4 fake"),
	})
	if err != nil {
		t.Fatalf("UploadCertificate() error = %v", err)
	}
	if cert.Filename != "completion.pdf" {
		t.Errorf("Filename = %q, want %q", cert.Filename, "completion.pdf")
	}
	if cert.SizeBytes == nil || *cert.SizeBytes != int64(len("%PDF-1.4 fake")) {
		t.Errorf("SizeBytes = %v, want %d", cert.SizeBytes, len("%PDF-1.4 fake"))
	}
	if !strings.HasSuffix(cert.BlobPath, ".pdf") {
		t.Errorf("BlobPath = %q, want .pdf suffix", cert.BlobPath)
	}
	if _, ok := f.blobs.blobs[cert.BlobPath]; !ok {
		t.Error("blob content not stored")
	}
}

func TestUploadCertificateDefaultFilename(t *testing.T) {
	userID := uuid.New()
	f := newCertificateFixture(t)
	course := f.addCourse(userID)

	cert, err := f.svc.UploadCertificate(context.Background(), UploadCertificateInput{
		UserID:   userID,
		CourseID: course.ID,
		Content:  bytes.NewReader([]byte{1, 2, 3}),
	})
	if err != nil {
		t.Fatalf("UploadCertificate() error = %v", err)
	}
	if cert.Filename != "certificate" {
		t.Errorf("Filename = %q, want %q", cert.Filename, "certificate")
	}
}

func TestUploadCertificateOtherUsersCourse(t *testing.T) {
	f := newCertificateFixture(t)
	course := f.addCourse(uuid.New())

	_, err := f.svc.UploadCertificate(context.Background(), UploadCertificateInput{
		UserID:   uuid.New(),
		CourseID: course.ID,
		Content:  strings.NewReader("x"),
	})
	if !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("error = %v, want ErrCourseNotFound", err)
	}
	if len(f.blobs.blobs) != 0 {
		t.Error("no blob should be written for a rejected upload")
	}
}

func TestUploadCertificateCleansUpOrphanedBlob(t *testing.T) {
	userID := uuid.New()
	f := newCertificateFixture(t)
	course := f.addCourse(userID)
	f.certificates.createErr = errors.New("insert failed")

	_, err := f.svc.UploadCertificate(context.Background(), UploadCertificateInput{
		UserID:   userID,
		CourseID: course.ID,
		Content:  strings.NewReader("x"),
	})
	if !errors.Is(err, ErrInternalError) {
		t.Fatalf("error = %v, want ErrInternalError", err)
	}
	if len(f.blobs.blobs) != 0 {
		t.Error("orphaned blob left behind after failed insert")
	}
	if len(f.blobs.deleted) != 1 {
		t.Errorf("blob deletes = %d, want 1", len(f.blobs.deleted))
	}
}

func TestUploadCertificateStorageUnavailable(t *testing.T) {
	userID := uuid.New()
	f := newCertificateFixture(t)
	course := f.addCourse(userID)
	f.blobs.saveErr = domain.ErrStorageUnavailable

	_, err := f.svc.UploadCertificate(context.Background(), UploadCertificateInput{
		UserID:   userID,
		CourseID: course.ID,
		Content:  strings.NewReader("x"),
	})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("error = %v, want ErrStorageUnavailable", err)
	}
}

// =============================================================================
// DownloadCertificate Tests
// =============================================================================

func TestDownloadCertificate(t *testing.T) {
	userID := uuid.New()
	f := newCertificateFixture(t)
	course := f.addCourse(userID)

	cert := domain.NewCertificate(course.ID, "cert.pdf", strPtr("application/pdf"), 4, "certificates/x/y.pdf")
	f.certificates.certificates[cert.ID] = cert
	f.blobs.blobs[cert.BlobPath] = []byte("data")

	out, err := f.svc.DownloadCertificate(context.Background(), userID, cert.ID)
	if err != nil {
		t.Fatalf("DownloadCertificate() error = %v", err)
	}
	defer out.Content.Close()

	data, err := io.ReadAll(out.Content)
	if err != nil {
		t.Fatalf("reading content: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("content = %q, want %q", data, "data")
	}
	if out.Certificate.ID != cert.ID {
		t.Errorf("Certificate.ID = %v, want %v", out.Certificate.ID, cert.ID)
	}
}

func TestDownloadCertificateMissingBlob(t *testing.T) {
	userID := uuid.New()
	f := newCertificateFixture(t)
	course := f.addCourse(userID)

	cert := domain.NewCertificate(course.ID, "cert.pdf", nil, 4, "certificates/x/gone.pdf")
	f.certificates.certificates[cert.ID] = cert

	_, err := f.svc.DownloadCertificate(context.Background(), userID, cert.ID)
	if !errors.Is(err, domain.ErrBlobNotFound) {
		t.Errorf("error = %v, want ErrBlobNotFound", err)
	}
}

func TestDownloadCertificateOtherUser(t *testing.T) {
	f := newCertificateFixture(t)
	course := f.addCourse(uuid.New())
	cert := domain.NewCertificate(course.ID, "cert.pdf", nil, 4, "certificates/x/y.pdf")
	f.certificates.certificates[cert.ID] = cert

	_, err := f.svc.DownloadCertificate(context.Background(), uuid.New(), cert.ID)
	if !errors.Is(err, domain.ErrCertificateNotFound) {
		t.Errorf("error = %v, want ErrCertificateNotFound", err)
	}
}

// =============================================================================
// DeleteCertificate Tests
// =============================================================================

func TestDeleteCertificate(t *testing.T) {
	userID := uuid.New()
	f := newCertificateFixture(t)
	course := f.addCourse(userID)

	cert := domain.NewCertificate(course.ID, "cert.pdf", nil, 4, "certificates/x/y.pdf")
	f.certificates.certificates[cert.ID] = cert
	f.blobs.blobs[cert.BlobPath] = []byte("data")

	if err := f.svc.DeleteCertificate(context.Background(), userID, cert.ID); err != nil {
		t.Fatalf("DeleteCertificate() error = %v", err)
	}
	if len(f.certificates.certificates) != 0 {
		t.Error("certificate row still present")
	}
	if len(f.blobs.blobs) != 0 {
		t.Error("blob still present")
	}
}
