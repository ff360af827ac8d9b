package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// allocationRepository implements repository.CreditAllocationRepository for SQLite.
type allocationRepository struct {
	db *DB
}

// NewCreditAllocationRepository creates a new SQLite credit allocation repository.
func NewCreditAllocationRepository(db *DB) repository.CreditAllocationRepository {
	return &allocationRepository{db: db}
}

// Create creates a new allocation.
func (r *allocationRepository) Create(ctx context.Context, allocation *domain.CreditAllocation) error {
	query := `
		INSERT INTO credit_allocations (id, course_credit_id, license_cycle_id, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		allocation.ID.String(),
		allocation.CourseCreditID.String(),
		allocation.LicenseCycleID.String(),
		formatTime(allocation.CreatedAt),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAllocationExists
		}
		return fmt.Errorf("failed to create allocation: %w", err)
	}

	return nil
}

// GetByID retrieves an allocation whose course and cycle are both owned
// by the given user.
func (r *allocationRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.CreditAllocation, error) {
	query := `
		SELECT a.id, a.course_credit_id, a.license_cycle_id, a.created_at
		FROM credit_allocations a
		JOIN course_credits cc ON cc.id = a.course_credit_id
		WHERE a.id = ? AND cc.user_id = ?
	`

	allocation, err := scanAllocation(r.db.conn(ctx).QueryRowContext(ctx, query, id.String(), userID.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrAllocationNotFound
		}
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}

	return allocation, nil
}

// List returns the user's allocations, optionally filtered by course
// and/or cycle.
func (r *allocationRepository) List(ctx context.Context, userID uuid.UUID, courseID, cycleID *uuid.UUID) ([]*domain.CreditAllocation, error) {
	query := `
		SELECT a.id, a.course_credit_id, a.license_cycle_id, a.created_at
		FROM credit_allocations a
		JOIN course_credits cc ON cc.id = a.course_credit_id
		WHERE cc.user_id = ?
	`
	args := []interface{}{userID.String()}

	if courseID != nil {
		query += ` AND a.course_credit_id = ?`
		args = append(args, courseID.String())
	}
	if cycleID != nil {
		query += ` AND a.license_cycle_id = ?`
		args = append(args, cycleID.String())
	}
	query += ` ORDER BY a.created_at ASC, a.id ASC`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	allocations := []*domain.CreditAllocation{}
	for rows.Next() {
		allocation, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, allocation)
	}

	return allocations, rows.Err()
}

// ExistingCycleIDs returns the subset of cycle ids already holding an
// allocation for the course.
func (r *allocationRepository) ExistingCycleIDs(ctx context.Context, courseID uuid.UUID, cycleIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if len(cycleIDs) == 0 {
		return map[uuid.UUID]struct{}{}, nil
	}

	query := fmt.Sprintf(`
		SELECT license_cycle_id
		FROM credit_allocations
		WHERE course_credit_id = ? AND license_cycle_id IN (%s)
	`, placeholders(len(cycleIDs)))

	args := []interface{}{courseID.String()}
	for _, id := range cycleIDs {
		args = append(args, id.String())
	}

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing allocations: %w", err)
	}
	defer rows.Close()

	existing := map[uuid.UUID]struct{}{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan allocation cycle id: %w", err)
		}
		id, err := parseUUID(s)
		if err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}

	return existing, rows.Err()
}

// ListJoined returns the user's allocations for the given cycles, joined
// with course data and cycle state scope.
func (r *allocationRepository) ListJoined(ctx context.Context, userID uuid.UUID, cycleIDs []uuid.UUID) ([]repository.AllocationCourseRow, error) {
	if len(cycleIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT a.license_cycle_id,
		       cc.id, cc.user_id, cc.title, cc.provider, cc.completed_at, cc.hours, cc.created_at, cc.updated_at,
		       l.state_code, c.cycle_start, c.cycle_end
		FROM credit_allocations a
		JOIN course_credits cc ON cc.id = a.course_credit_id
		JOIN license_cycles c ON c.id = a.license_cycle_id
		JOIN state_licenses l ON l.id = c.state_license_id
		WHERE cc.user_id = ? AND l.user_id = ? AND a.license_cycle_id IN (%s)
		ORDER BY cc.completed_at ASC, cc.created_at ASC
	`, placeholders(len(cycleIDs)))

	args := []interface{}{userID.String(), userID.String()}
	for _, id := range cycleIDs {
		args = append(args, id.String())
	}

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list joined allocations: %w", err)
	}
	defer rows.Close()

	result := []repository.AllocationCourseRow{}
	for rows.Next() {
		var row repository.AllocationCourseRow
		var cycleID, courseID, courseUserID, completedAt, hours, createdAt, updatedAt string
		var cycleStart, cycleEnd string

		err := rows.Scan(
			&cycleID,
			&courseID,
			&courseUserID,
			&row.Course.Title,
			&row.Course.Provider,
			&completedAt,
			&hours,
			&createdAt,
			&updatedAt,
			&row.StateCode,
			&cycleStart,
			&cycleEnd,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan joined allocation: %w", err)
		}

		if row.CycleID, err = parseUUID(cycleID); err != nil {
			return nil, err
		}
		if row.Course.ID, err = parseUUID(courseID); err != nil {
			return nil, err
		}
		if row.Course.UserID, err = parseUUID(courseUserID); err != nil {
			return nil, err
		}
		if row.Course.CompletedAt, err = parseDate(completedAt); err != nil {
			return nil, err
		}
		if row.Course.Hours, err = parseDecimal(hours); err != nil {
			return nil, err
		}
		if row.Course.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if row.Course.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		if row.CycleStart, err = parseDate(cycleStart); err != nil {
			return nil, err
		}
		if row.CycleEnd, err = parseDate(cycleEnd); err != nil {
			return nil, err
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

// Delete deletes an allocation by id.
func (r *allocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM credit_allocations WHERE id = ?`

	result, err := r.db.conn(ctx).ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAllocationNotFound
	}

	return nil
}

// DeleteByCourse deletes all allocations referencing a course.
func (r *allocationRepository) DeleteByCourse(ctx context.Context, courseID uuid.UUID) error {
	query := `DELETE FROM credit_allocations WHERE course_credit_id = ?`

	if _, err := r.db.conn(ctx).ExecContext(ctx, query, courseID.String()); err != nil {
		return fmt.Errorf("failed to delete course allocations: %w", err)
	}

	return nil
}

// DeleteByCycle deletes all allocations referencing a cycle.
func (r *allocationRepository) DeleteByCycle(ctx context.Context, cycleID uuid.UUID) error {
	query := `DELETE FROM credit_allocations WHERE license_cycle_id = ?`

	if _, err := r.db.conn(ctx).ExecContext(ctx, query, cycleID.String()); err != nil {
		return fmt.Errorf("failed to delete cycle allocations: %w", err)
	}

	return nil
}

func scanAllocation(row rowScanner) (*domain.CreditAllocation, error) {
	allocation := &domain.CreditAllocation{}
	var id, courseID, cycleID, createdAt string

	err := row.Scan(&id, &courseID, &cycleID, &createdAt)
	if err != nil {
		return nil, err
	}

	if allocation.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if allocation.CourseCreditID, err = parseUUID(courseID); err != nil {
		return nil, err
	}
	if allocation.LicenseCycleID, err = parseUUID(cycleID); err != nil {
		return nil, err
	}
	if allocation.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return allocation, nil
}
