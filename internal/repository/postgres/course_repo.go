package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// courseRepository implements repository.CourseCreditRepository for PostgreSQL.
type courseRepository struct {
	db *DB
}

// NewCourseCreditRepository creates a new PostgreSQL course credit repository.
func NewCourseCreditRepository(db *DB) repository.CourseCreditRepository {
	return &courseRepository{db: db}
}

// Create creates a new course credit.
func (r *courseRepository) Create(ctx context.Context, course *domain.CourseCredit) error {
	query := `
		INSERT INTO course_credits (id, user_id, title, provider, completed_at, hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6::numeric, $7, $8)
	`

	_, err := r.db.conn(ctx).Exec(ctx, query,
		course.ID.String(),
		course.UserID.String(),
		course.Title,
		course.Provider,
		course.CompletedAt.String(),
		course.Hours.String(),
		course.CreatedAt,
		course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create course credit: %w", err)
	}

	return nil
}

// GetByID retrieves a course owned by the given user.
func (r *courseRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.CourseCredit, error) {
	query := `
		SELECT id::text, user_id::text, title, provider, completed_at::text, hours::text, created_at, updated_at
		FROM course_credits
		WHERE id = $1 AND user_id = $2
	`

	course, err := scanCourse(r.db.conn(ctx).QueryRow(ctx, query, id.String(), userID.String()))
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
		SELECT id::text, user_id::text, title, provider, completed_at::text, hours::text, created_at, updated_at
		FROM course_credits
		WHERE user_id = $1
	`
	args := []any{userID.String()}

	if from != nil {
		args = append(args, from.String())
		query += fmt.Sprintf(` AND completed_at >= $%d::date`, len(args))
	}
	if to != nil {
		args = append(args, to.String())
		query += fmt.Sprintf(` AND completed_at <= $%d::date`, len(args))
	}
	query += ` ORDER BY completed_at DESC, created_at DESC`

	rows, err := r.db.conn(ctx).Query(ctx, query, args...)
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
		SET title = $1, provider = $2, completed_at = $3::date, hours = $4::numeric, updated_at = $5
		WHERE id = $6 AND user_id = $7
	`

	tag, err := r.db.conn(ctx).Exec(ctx, query,
		course.Title,
		course.Provider,
		course.CompletedAt.String(),
		course.Hours.String(),
		course.UpdatedAt,
		course.ID.String(),
		course.UserID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update course credit: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrCourseNotFound
	}

	return nil
}

// Delete deletes a course.
func (r *courseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM course_credits WHERE id = $1`

	tag, err := r.db.conn(ctx).Exec(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete course credit: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrCourseNotFound
	}

	return nil
}

func scanCourse(row rowScanner) (*domain.CourseCredit, error) {
	course := &domain.CourseCredit{}
	var id, userID, completedAt, hours string

	err := row.Scan(
		&id,
		&userID,
		&course.Title,
		&course.Provider,
		&completedAt,
		&hours,
		&course.CreatedAt,
		&course.UpdatedAt,
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

	return course, nil
}
