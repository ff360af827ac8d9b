package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CourseCredit is one completed CE course with an hour value.
// Its hours count toward a cycle only through a CreditAllocation.
type CourseCredit struct {
	// ID is the unique identifier for this course.
	ID uuid.UUID `json:"id"`

	// UserID is the owning user.
	UserID uuid.UUID `json:"-"`

	// Title is the course title.
	Title string `json:"title"`

	// Provider is the course provider, if recorded.
	Provider *string `json:"provider"`

	// CompletedAt is the day the course was completed.
	CompletedAt Date `json:"completed_at"`

	// Hours is the CE hour value of the course. Positive.
	Hours decimal.Decimal `json:"hours"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCourseCredit creates a course credit; callers validate hours first.
func NewCourseCredit(userID uuid.UUID, title string, provider *string, completedAt Date, hours decimal.Decimal) *CourseCredit {
	now := time.Now().UTC()
	return &CourseCredit{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Provider:    provider,
		CompletedAt: completedAt,
		Hours:       hours,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ValidateCourseHours checks that the course hour value is positive.
func ValidateCourseHours(hours decimal.Decimal) error {
	if hours.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("hours", "must be greater than 0")
	}
	return nil
}

// CreditAllocation links a course's hours to one license cycle.
// A course may be allocated to a cycle at most once, but to any number
// of distinct cycles.
type CreditAllocation struct {
	// ID is the unique identifier for this allocation.
	ID uuid.UUID `json:"id"`

	// CourseCreditID is the allocated course.
	CourseCreditID uuid.UUID `json:"course_credit_id"`

	// LicenseCycleID is the receiving cycle.
	LicenseCycleID uuid.UUID `json:"license_cycle_id"`

	// CreatedAt is when the allocation was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewCreditAllocation creates an allocation between a course and a cycle.
func NewCreditAllocation(courseID, cycleID uuid.UUID) *CreditAllocation {
	return &CreditAllocation{
		ID:             uuid.New(),
		CourseCreditID: courseID,
		LicenseCycleID: cycleID,
		CreatedAt:      time.Now().UTC(),
	}
}

// Certificate is a proof-of-completion document attached to a course.
// The document bytes live in the blob store under BlobPath; the database
// row is the source of truth for existence.
type Certificate struct {
	// ID is the unique identifier for this certificate.
	ID uuid.UUID `json:"id"`

	// CourseCreditID is the parent course.
	CourseCreditID uuid.UUID `json:"course_credit_id"`

	// Filename is the original upload filename.
	Filename string `json:"filename"`

	// ContentType is the MIME type declared at upload, if any.
	ContentType *string `json:"content_type"`

	// SizeBytes is the stored blob size, if known.
	SizeBytes *int64 `json:"size_bytes"`

	// BlobPath is the opaque blob store reference.
	BlobPath string `json:"blob_path"`

	// CreatedAt is when the certificate was uploaded.
	CreatedAt time.Time `json:"created_at"`
}

// NewCertificate creates a certificate row for an already-stored blob.
func NewCertificate(courseID uuid.UUID, filename string, contentType *string, sizeBytes int64, blobPath string) *Certificate {
	return &Certificate{
		ID:             uuid.New(),
		CourseCreditID: courseID,
		Filename:       filename,
		ContentType:    contentType,
		SizeBytes:      &sizeBytes,
		BlobPath:       blobPath,
		CreatedAt:      time.Now().UTC(),
	}
}
