package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// certificateRepository implements repository.CertificateRepository for SQLite.
type certificateRepository struct {
	db *DB
}

// NewCertificateRepository creates a new SQLite certificate repository.
func NewCertificateRepository(db *DB) repository.CertificateRepository {
	return &certificateRepository{db: db}
}

// Create creates a new certificate row.
func (r *certificateRepository) Create(ctx context.Context, cert *domain.Certificate) error {
	query := `
		INSERT INTO certificates (id, course_credit_id, filename, content_type, size_bytes, blob_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		cert.ID.String(),
		cert.CourseCreditID.String(),
		cert.Filename,
		cert.ContentType,
		cert.SizeBytes,
		cert.BlobPath,
		formatTime(cert.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	return nil
}

// GetByID retrieves a certificate owned (via its course) by the user.
func (r *certificateRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Certificate, error) {
	query := `
		SELECT ct.id, ct.course_credit_id, ct.filename, ct.content_type, ct.size_bytes, ct.blob_path, ct.created_at
		FROM certificates ct
		JOIN course_credits cc ON cc.id = ct.course_credit_id
		WHERE ct.id = ? AND cc.user_id = ?
	`

	cert, err := scanCertificate(r.db.conn(ctx).QueryRowContext(ctx, query, id.String(), userID.String()))
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
		SELECT id, course_credit_id, filename, content_type, size_bytes, blob_path, created_at
		FROM certificates
		WHERE course_credit_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, courseID.String())
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

	query := fmt.Sprintf(`
		SELECT id, course_credit_id, filename, content_type, size_bytes, blob_path, created_at
		FROM certificates
		WHERE course_credit_id IN (%s)
		ORDER BY created_at ASC, id ASC
	`, placeholders(len(courseIDs)))

	args := make([]interface{}, 0, len(courseIDs))
	for _, id := range courseIDs {
		args = append(args, id.String())
	}

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
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
	query := `SELECT blob_path FROM certificates WHERE course_credit_id = ?`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, courseID.String())
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
	query := `DELETE FROM certificates WHERE id = ?`

	result, err := r.db.conn(ctx).ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrCertificateNotFound
	}

	return nil
}

// DeleteByCourse deletes all certificate rows of a course.
func (r *certificateRepository) DeleteByCourse(ctx context.Context, courseID uuid.UUID) error {
	query := `DELETE FROM certificates WHERE course_credit_id = ?`

	if _, err := r.db.conn(ctx).ExecContext(ctx, query, courseID.String()); err != nil {
		return fmt.Errorf("failed to delete course certificates: %w", err)
	}

	return nil
}

func scanCertificate(row rowScanner) (*domain.Certificate, error) {
	cert := &domain.Certificate{}
	var id, courseID, createdAt string

	err := row.Scan(
		&id,
		&courseID,
		&cert.Filename,
		&cert.ContentType,
		&cert.SizeBytes,
		&cert.BlobPath,
		&createdAt,
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
	if cert.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return cert, nil
}
