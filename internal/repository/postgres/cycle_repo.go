package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// cycleRepository implements repository.LicenseCycleRepository for PostgreSQL.
type cycleRepository struct {
	db *DB
}

// NewLicenseCycleRepository creates a new PostgreSQL license cycle repository.
func NewLicenseCycleRepository(db *DB) repository.LicenseCycleRepository {
	return &cycleRepository{db: db}
}

// Create creates a new cycle under an already-ownership-checked license.
func (r *cycleRepository) Create(ctx context.Context, cycle *domain.LicenseCycle) error {
	query := `
		INSERT INTO license_cycles (id, state_license_id, cycle_start, cycle_end, required_hours, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4::date, $5::numeric, $6, $7)
	`

	_, err := r.db.conn(ctx).Exec(ctx, query,
		cycle.ID.String(),
		cycle.StateLicenseID.String(),
		cycle.CycleStart.String(),
		cycle.CycleEnd.String(),
		cycle.RequiredHours.String(),
		cycle.CreatedAt,
		cycle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create license cycle: %w", err)
	}

	return nil
}

// GetByID retrieves a cycle owned (via its license) by the given user.
func (r *cycleRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.LicenseCycle, error) {
	query := `
		SELECT c.id::text, c.state_license_id::text, c.cycle_start::text, c.cycle_end::text,
		       c.required_hours::text, c.created_at, c.updated_at
		FROM license_cycles c
		JOIN state_licenses l ON l.id = c.state_license_id
		WHERE c.id = $1 AND l.user_id = $2
	`

	cycle, err := scanCycle(r.db.conn(ctx).QueryRow(ctx, query, id.String(), userID.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrLicenseCycleNotFound
		}
		return nil, fmt.Errorf("failed to get license cycle: %w", err)
	}

	return cycle, nil
}

// ListByUser returns the user's cycles ordered by cycle_end ascending,
// optionally restricted to one license.
func (r *cycleRepository) ListByUser(ctx context.Context, userID uuid.UUID, stateLicenseID *uuid.UUID) ([]*domain.LicenseCycle, error) {
	query := `
		SELECT c.id::text, c.state_license_id::text, c.cycle_start::text, c.cycle_end::text,
		       c.required_hours::text, c.created_at, c.updated_at
		FROM license_cycles c
		JOIN state_licenses l ON l.id = c.state_license_id
		WHERE l.user_id = $1
	`
	args := []any{userID.String()}

	if stateLicenseID != nil {
		query += ` AND c.state_license_id = $2`
		args = append(args, stateLicenseID.String())
	}
	query += ` ORDER BY c.cycle_end ASC, c.id ASC`

	rows, err := r.db.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list license cycles: %w", err)
	}
	defer rows.Close()

	cycles := []*domain.LicenseCycle{}
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan license cycle: %w", err)
		}
		cycles = append(cycles, cycle)
	}

	return cycles, rows.Err()
}

// ListWithState returns the user's cycles joined with their state codes.
// The window filter keeps any cycle whose [cycle_start, cycle_end] span
// intersects [from, to].
func (r *cycleRepository) ListWithState(ctx context.Context, userID uuid.UUID, from, to *domain.Date, state *string) ([]repository.CycleWithState, error) {
	query := `
		SELECT c.id::text, c.state_license_id::text, c.cycle_start::text, c.cycle_end::text,
		       c.required_hours::text, c.created_at, c.updated_at,
		       l.state_code, l.license_number
		FROM license_cycles c
		JOIN state_licenses l ON l.id = c.state_license_id
		WHERE l.user_id = $1
	`
	args := []any{userID.String()}

	if from != nil {
		args = append(args, from.String())
		query += fmt.Sprintf(` AND c.cycle_end >= $%d::date`, len(args))
	}
	if to != nil {
		args = append(args, to.String())
		query += fmt.Sprintf(` AND c.cycle_start <= $%d::date`, len(args))
	}
	if state != nil {
		args = append(args, *state)
		query += fmt.Sprintf(` AND l.state_code = $%d`, len(args))
	}
	query += ` ORDER BY l.state_code ASC, c.cycle_end ASC, c.id ASC`

	rows, err := r.db.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles with state: %w", err)
	}
	defer rows.Close()

	result := []repository.CycleWithState{}
	for rows.Next() {
		var row repository.CycleWithState
		var id, licenseID, cycleStart, cycleEnd, requiredHours string

		err := rows.Scan(
			&id,
			&licenseID,
			&cycleStart,
			&cycleEnd,
			&requiredHours,
			&row.Cycle.CreatedAt,
			&row.Cycle.UpdatedAt,
			&row.StateCode,
			&row.LicenseNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle with state: %w", err)
		}

		if row.Cycle.ID, err = parseUUID(id); err != nil {
			return nil, err
		}
		if row.Cycle.StateLicenseID, err = parseUUID(licenseID); err != nil {
			return nil, err
		}
		if row.Cycle.CycleStart, err = parseDate(cycleStart); err != nil {
			return nil, err
		}
		if row.Cycle.CycleEnd, err = parseDate(cycleEnd); err != nil {
			return nil, err
		}
		if row.Cycle.RequiredHours, err = parseDecimal(requiredHours); err != nil {
			return nil, err
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

// ListContaining returns ids of the user's cycles whose window contains
// the given date.
func (r *cycleRepository) ListContaining(ctx context.Context, userID uuid.UUID, date domain.Date) ([]uuid.UUID, error) {
	query := `
		SELECT c.id::text
		FROM license_cycles c
		JOIN state_licenses l ON l.id = c.state_license_id
		WHERE l.user_id = $1 AND c.cycle_start <= $2::date AND c.cycle_end >= $2::date
		ORDER BY c.cycle_end ASC, c.id ASC
	`

	rows, err := r.db.conn(ctx).Query(ctx, query, userID.String(), date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list containing cycles: %w", err)
	}
	defer rows.Close()

	return scanUUIDs(rows)
}

// ListOwnedIDs filters the given cycle ids down to those owned by the user.
func (r *cycleRepository) ListOwnedIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT c.id::text
		FROM license_cycles c
		JOIN state_licenses l ON l.id = c.state_license_id
		WHERE l.user_id = $1 AND c.id = ANY($2::uuid[])
	`

	rows, err := r.db.conn(ctx).Query(ctx, query, userID.String(), uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list owned cycle ids: %w", err)
	}
	defer rows.Close()

	return scanUUIDs(rows)
}

// CountByLicense returns the number of cycles under a license.
func (r *cycleRepository) CountByLicense(ctx context.Context, stateLicenseID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM license_cycles WHERE state_license_id = $1`

	var count int64
	if err := r.db.conn(ctx).QueryRow(ctx, query, stateLicenseID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cycles: %w", err)
	}

	return count, nil
}

// Update persists cycle date and hour changes.
func (r *cycleRepository) Update(ctx context.Context, cycle *domain.LicenseCycle) error {
	query := `
		UPDATE license_cycles
		SET cycle_start = $1::date, cycle_end = $2::date, required_hours = $3::numeric, updated_at = $4
		WHERE id = $5
	`

	tag, err := r.db.conn(ctx).Exec(ctx, query,
		cycle.CycleStart.String(),
		cycle.CycleEnd.String(),
		cycle.RequiredHours.String(),
		cycle.UpdatedAt,
		cycle.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update license cycle: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrLicenseCycleNotFound
	}

	return nil
}

// Delete deletes a cycle.
func (r *cycleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM license_cycles WHERE id = $1`

	tag, err := r.db.conn(ctx).Exec(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete license cycle: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrLicenseCycleNotFound
	}

	return nil
}

func scanCycle(row rowScanner) (*domain.LicenseCycle, error) {
	cycle := &domain.LicenseCycle{}
	var id, licenseID, cycleStart, cycleEnd, requiredHours string

	err := row.Scan(
		&id,
		&licenseID,
		&cycleStart,
		&cycleEnd,
		&requiredHours,
		&cycle.CreatedAt,
		&cycle.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cycle.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if cycle.StateLicenseID, err = parseUUID(licenseID); err != nil {
		return nil, err
	}
	if cycle.CycleStart, err = parseDate(cycleStart); err != nil {
		return nil, err
	}
	if cycle.CycleEnd, err = parseDate(cycleEnd); err != nil {
		return nil, err
	}
	if cycle.RequiredHours, err = parseDecimal(requiredHours); err != nil {
		return nil, err
	}

	return cycle, nil
}

func scanUUIDs(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		id, err := parseUUID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// uuidStrings converts uuids to their text form for uuid[] parameters.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
