package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// certificateRepository implements repository.CertificateRepository for PostgreSQL.
type certificateRepository struct {
	db *DB
}

// NewCertificateRepository creates a new PostgreSQL certificate repository.
func NewCertificateRepository(db *DB) repository.CertificateRepository {
	return &certificateRepository{db: db}
}

// Create creates a new certificate row.
func (r *certificateRepository) Create(ctx context.Context, cert *domain.Certificate) error {
	query := `
		INSERT INTO certificates (id, course_credit_id, filename, content_type, size_bytes, blob_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.conn(ctx).Exec(ctx, query,
		cert.ID.String(),
		cert.CourseCreditID.String(),
		cert.Filename,
		cert.ContentType,
		cert.SizeBytes,
		cert.BlobPath,
		cert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	return nil
}

// GetByID retrieves a certificate owned (via its course) by the user.
func (r *certificateRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Certificate, error) {
	query := `
		SELECT ct.id::text, ct.course_credit_id::text, ct.filename, ct.content_type, ct.size_bytes, ct.blob_path, ct.created_at
		FROM certificates ct
		JOIN course_credits cc ON cc.id = ct.course_credit_id
		WHERE ct.id = $1 AND cc.user_id = $2
	`

	cert, err := scanCertificate(r.db.conn(ctx).QueryRow(ctx, query, id.String(), userID.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCertificateNotFound
		}
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	return cert, nil
}

// ListByCourse returns a course's certificates.
func (r *certificateRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*domain.Certificate, error) {
	query := `
		SELECT id::text, course_credit_id::text, filename, content_type, size_bytes, blob_path, created_at
		FROM certificates
		WHERE course_credit_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.conn(ctx).Query(ctx, query, courseID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	certs := []*domain.Certificate{}
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	return certs, rows.Err()
}

// ListByCourses returns certificates for any of the given courses,
// keyed by course id.
func (r *certificateRepository) ListByCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID][]*domain.Certificate, error) {
	result := map[uuid.UUID][]*domain.Certificate{}
	if len(courseIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id::text, course_credit_id::text, filename, content_type, size_bytes, blob_path, created_at
		FROM certificates
		WHERE course_credit_id = ANY($1::uuid[])
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.conn(ctx).Query(ctx, query, uuidStrings(courseIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates by courses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		result[cert.CourseCreditID] = append(result[cert.CourseCreditID], cert)
	}

	return result, rows.Err()
}

// ListBlobPathsByCourse returns the blob paths of a course's certificates.
func (r *certificateRepository) ListBlobPathsByCourse(ctx context.Context, courseID uuid.UUID) ([]string, error) {
	query := `SELECT blob_path FROM certificates WHERE course_credit_id = $1`

	rows, err := r.db.conn(ctx).Query(ctx, query, courseID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list blob paths: %w", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan blob path: %w", err)
		}
		paths = append(paths, p)
	}

	return paths, rows.Err()
}

// Delete deletes a certificate row.
func (r *certificateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM certificates WHERE id = $1`

	tag, err := r.db.conn(ctx).Exec(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrCertificateNotFound
	}

	return nil
}

// DeleteByCourse deletes all certificate rows of a course.
func (r *certificateRepository) DeleteByCourse(ctx context.Context, courseID uuid.UUID) error {
	query := `DELETE FROM certificates WHERE course_credit_id = $1`

	if _, err := r.db.conn(ctx).Exec(ctx, query, courseID.String()); err != nil {
		return fmt.Errorf("failed to delete course certificates: %w", err)
	}

	return nil
}

func scanCertificate(row rowScanner) (*domain.Certificate, error) {
	cert := &domain.Certificate{}
	var id, courseID string

	err := row.Scan(
		&id,
		&courseID,
		&cert.Filename,
		&cert.ContentType,
		&cert.SizeBytes,
		&cert.BlobPath,
		&cert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cert.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if cert.CourseCreditID, err = parseUUID(courseID); err != nil {
		return nil, err
	}

	return cert, nil
}
