package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
)

// BookingRepository owns the transactional write paths for bookings. Each
// booking runs inside a single transaction holding a per-teacher advisory
// lock, so concurrent requests for the same teacher serialize and the
// in-transaction conflict re-checks see committed state.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const lessonInsert = `INSERT INTO lessons (id, teacher_id, student_id, recurring_slot_id, start_at, duration_minutes, status, recurring, price, notes, created_at, updated_at)
	VALUES (:id, :teacher_id, :student_id, :recurring_slot_id, :start_at, :duration_minutes, :status, :recurring, :price, :notes, :created_at, :updated_at)`

// CreateSingleLesson books a one-off lesson. Returns ErrLessonConflict when
// another lesson occupies any part of the requested interval.
func (r *BookingRepository) CreateSingleLesson(ctx context.Context, lesson *models.Lesson) error {
	prepareLesson(lesson)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback()

	if err := acquireTeacherLock(ctx, tx, lesson.TeacherID); err != nil {
		return err
	}

	conflict, err := findConflictingTx(ctx, tx, lesson.TeacherID, lesson.StartAt, lesson.EndAt())
	if err != nil {
		return err
	}
	if conflict != nil {
		return appErrors.ErrLessonConflict
	}

	if _, err := tx.NamedExecContext(ctx, lessonInsert, lesson); err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert lesson: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// CreateRecurringBooking creates a recurring slot and its generated lessons
// in one transaction. The first lesson must be insertable or the whole
// booking fails; later occurrences that collide with existing lessons are
// skipped. Returns the number of lessons actually created.
func (r *BookingRepository) CreateRecurringBooking(ctx context.Context, slot *models.RecurringSlot, lessons []models.Lesson) (int, error) {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback()

	if err := acquireTeacherLock(ctx, tx, slot.TeacherID); err != nil {
		return 0, err
	}

	var existing int
	err = sqlx.GetContext(ctx, tx, &existing,
		`SELECT COUNT(*) FROM recurring_slots WHERE teacher_id = $1 AND day_of_week = $2 AND start_minute = $3 AND duration_minutes = $4 AND status = 'ACTIVE'`,
		slot.TeacherID, slot.DayOfWeek, slot.StartMinute, slot.DurationMinutes)
	if err != nil {
		return 0, fmt.Errorf("check recurring slot tuple: %w", err)
	}
	if existing > 0 {
		return 0, appErrors.ErrDuplicateRecurringSlot
	}

	const slotInsert = `INSERT INTO recurring_slots (id, teacher_id, student_id, day_of_week, start_minute, duration_minutes, price, timezone, status, created_at, updated_at)
		VALUES (:id, :teacher_id, :student_id, :day_of_week, :start_minute, :duration_minutes, :price, :timezone, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, slotInsert, slot); err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return 0, mapped
		}
		return 0, fmt.Errorf("insert recurring slot: %w", err)
	}

	created := 0
	for i := range lessons {
		lesson := &lessons[i]
		lesson.RecurringSlotID = &slot.ID
		prepareLesson(lesson)

		if i == 0 {
			conflict, err := findConflictingTx(ctx, tx, lesson.TeacherID, lesson.StartAt, lesson.EndAt())
			if err != nil {
				return 0, err
			}
			if conflict != nil {
				return 0, appErrors.ErrLessonConflict
			}
			if _, err := tx.NamedExecContext(ctx, lessonInsert, lesson); err != nil {
				if mapped := mapUniqueViolation(err); mapped != nil {
					return 0, mapped
				}
				return 0, fmt.Errorf("insert first lesson: %w", err)
			}
			created++
			continue
		}

		conflict, err := findConflictingTx(ctx, tx, lesson.TeacherID, lesson.StartAt, lesson.EndAt())
		if err != nil {
			return 0, err
		}
		if conflict != nil {
			continue
		}
		result, err := tx.NamedExecContext(ctx, lessonInsert+` ON CONFLICT (teacher_id, start_at) WHERE status = 'SCHEDULED' DO NOTHING`, lesson)
		if err != nil {
			return 0, fmt.Errorf("insert recurring lesson: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert recurring lesson: %w", err)
		}
		created += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit booking tx: %w", err)
	}
	return created, nil
}

func prepareLesson(lesson *models.Lesson) {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.Status == "" {
		lesson.Status = models.LessonStatusScheduled
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
}

// acquireTeacherLock takes a transaction-scoped advisory lock keyed by
// teacher ID. Released automatically at commit or rollback.
func acquireTeacherLock(ctx context.Context, tx *sqlx.Tx, teacherID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, teacherID); err != nil {
		return fmt.Errorf("acquire teacher lock: %w", err)
	}
	return nil
}

func findConflictingTx(ctx context.Context, q sqlx.QueryerContext, teacherID string, startAt, endAt time.Time) (*models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons
		WHERE teacher_id = $1 AND status = 'SCHEDULED'
		AND start_at < $3 AND start_at + make_interval(mins => duration_minutes) > $2
		ORDER BY start_at LIMIT 1`, lessonColumns)
	var lesson models.Lesson
	if err := sqlx.GetContext(ctx, q, &lesson, query, teacherID, startAt, endAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("check lesson conflict: %w", err)
	}
	return &lesson, nil
}

// mapUniqueViolation converts Postgres unique violations raised by the
// scheduling guard indexes into domain conflict errors.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "uq_lessons_teacher_start_scheduled":
		return appErrors.ErrLessonConflict
	case "uq_recurring_slots_active_tuple":
		return appErrors.ErrDuplicateRecurringSlot
	}
	return appErrors.ErrConflict
}
