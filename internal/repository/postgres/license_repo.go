package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// licenseRepository implements repository.StateLicenseRepository for PostgreSQL.
type licenseRepository struct {
	db *DB
}

// NewStateLicenseRepository creates a new PostgreSQL state license repository.
func NewStateLicenseRepository(db *DB) repository.StateLicenseRepository {
	return &licenseRepository{db: db}
}

// Create creates a new state license.
func (r *licenseRepository) Create(ctx context.Context, license *domain.StateLicense) error {
	query := `
		INSERT INTO state_licenses (id, user_id, state_code, license_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.conn(ctx).Exec(ctx, query,
		license.ID.String(),
		license.UserID.String(),
		license.StateCode,
		license.LicenseNumber,
		license.CreatedAt,
		license.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrStateLicenseExists, license.StateCode)
		}
		return fmt.Errorf("failed to create state license: %w", err)
	}

	return nil
}

// GetByID retrieves a license owned by the given user.
func (r *licenseRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.StateLicense, error) {
	query := `
		SELECT id::text, user_id::text, state_code, license_number, created_at, updated_at
		FROM state_licenses
		WHERE id = $1 AND user_id = $2
	`

	license, err := scanLicense(r.db.conn(ctx).QueryRow(ctx, query, id.String(), userID.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrStateLicenseNotFound
		}
		return nil, fmt.Errorf("failed to get state license: %w", err)
	}

	return license, nil
}

// ListByUser returns the user's licenses ordered by state code.
func (r *licenseRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.StateLicense, error) {
	query := `
		SELECT id::text, user_id::text, state_code, license_number, created_at, updated_at
		FROM state_licenses
		WHERE user_id = $1
		ORDER BY state_code ASC
	`

	rows, err := r.db.conn(ctx).Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list state licenses: %w", err)
	}
	defer rows.Close()

	licenses := []*domain.StateLicense{}
	for rows.Next() {
		license, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state license: %w", err)
		}
		licenses = append(licenses, license)
	}

	return licenses, rows.Err()
}

// Update persists license_number changes.
func (r *licenseRepository) Update(ctx context.Context, license *domain.StateLicense) error {
	query := `
		UPDATE state_licenses
		SET license_number = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
	`

	tag, err := r.db.conn(ctx).Exec(ctx, query,
		license.LicenseNumber,
		license.UpdatedAt,
		license.ID.String(),
		license.UserID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update state license: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrStateLicenseNotFound
	}

	return nil
}

// Delete deletes a license owned by the given user.
func (r *licenseRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := `DELETE FROM state_licenses WHERE id = $1 AND user_id = $2`

	tag, err := r.db.conn(ctx).Exec(ctx, query, id.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete state license: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrStateLicenseNotFound
	}

	return nil
}

func scanLicense(row rowScanner) (*domain.StateLicense, error) {
	license := &domain.StateLicense{}
	var id, userID string

	err := row.Scan(
		&id,
		&userID,
		&license.StateCode,
		&license.LicenseNumber,
		&license.CreatedAt,
		&license.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if license.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if license.UserID, err = parseUUID(userID); err != nil {
		return nil, err
	}

	return license, nil
}
