package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// courseRepository implements repository.CourseCreditRepository for SQLite.
type courseRepository struct {
	db *DB
}

// NewCourseCreditRepository creates a new SQLite course credit repository.
func NewCourseCreditRepository(db *DB) repository.CourseCreditRepository {
	return &courseRepository{db: db}
}

// Create creates a new course credit.
func (r *courseRepository) Create(ctx context.Context, course *domain.CourseCredit) error {
	query := `
		INSERT INTO course_credits (id, user_id, title, provider, completed_at, hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		course.ID.String(),
		course.UserID.String(),
		course.Title,
		course.Provider,
		course.CompletedAt.String(),
		course.Hours.String(),
		formatTime(course.CreatedAt),
		formatTime(course.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create course credit: %w", err)
	}

	return nil
}

// GetByID retrieves a course owned by the given user.
func (r *courseRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.CourseCredit, error) {
	query := `
		SELECT id, user_id, title, provider, completed_at, hours, created_at, updated_at
		FROM course_credits
		WHERE id = ? AND user_id = ?
	`

	course, err := scanCourse(r.db.conn(ctx).QueryRowContext(ctx, query, id.String(), userID.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course credit: %w", err)
	}

	return course, nil
}

// ListByUser returns the user's courses ordered by completed_at descending.
func (r *courseRepository) ListByUser(ctx context.Context, userID uuid.UUID, from, to *domain.Date) ([]*domain.CourseCredit, error) {
	query := `
		SELECT id, user_id, title, provider, completed_at, hours, created_at, updated_at
		FROM course_credits
		WHERE user_id = ?
	`
	args := []interface{}{userID.String()}

	if from != nil {
		query += ` AND completed_at >= ?`
		args = append(args, from.String())
	}
	if to != nil {
		query += ` AND completed_at <= ?`
		args = append(args, to.String())
	}
	query += ` ORDER BY completed_at DESC, created_at DESC`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list course credits: %w", err)
	}
	defer rows.Close()

	courses := []*domain.CourseCredit{}
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course credit: %w", err)
		}
		courses = append(courses, course)
	}

	return courses, rows.Err()
}

// Update persists course changes.
func (r *courseRepository) Update(ctx context.Context, course *domain.CourseCredit) error {
	query := `
		UPDATE course_credits
		SET title = ?, provider = ?, completed_at = ?, hours = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		course.Title,
		course.Provider,
		course.CompletedAt.String(),
		course.Hours.String(),
		formatTime(course.UpdatedAt),
		course.ID.String(),
		course.UserID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update course credit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrCourseNotFound
	}

	return nil
}

// Delete deletes a course.
func (r *courseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM course_credits WHERE id = ?`

	result, err := r.db.conn(ctx).ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete course credit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrCourseNotFound
	}

	return nil
}

func scanCourse(row rowScanner) (*domain.CourseCredit, error) {
	course := &domain.CourseCredit{}
	var id, userID, completedAt, hours, createdAt, updatedAt string

	err := row.Scan(
		&id,
		&userID,
		&course.Title,
		&course.Provider,
		&completedAt,
		&hours,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if course.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if course.UserID, err = parseUUID(userID); err != nil {
		return nil, err
	}
	if course.CompletedAt, err = parseDate(completedAt); err != nil {
		return nil, err
	}
	if course.Hours, err = parseDecimal(hours); err != nil {
		return nil, err
	}
	if course.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if course.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return course, nil
}
