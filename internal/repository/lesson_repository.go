package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/muselane/studio-api/internal/models"
)

// LessonRepository manages persistence for scheduled lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonColumns = `id, teacher_id, student_id, recurring_slot_id, start_at, duration_minutes, status, recurring, price, notes, created_at, updated_at`

// List returns lessons matching filters along with total count.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	base := "FROM lessons WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SlotID != "" {
		conditions = append(conditions, fmt.Sprintf("recurring_slot_id = $%d", len(args)+1))
		args = append(args, filter.SlotID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("start_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("start_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_at %s LIMIT %d OFFSET %d", lessonColumns, base, order, size, offset)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}

	return lessons, total, nil
}

// FindByID fetches a lesson by ID.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// FindConflicting returns the first SCHEDULED lesson of the teacher whose
// interval intersects [startAt, endAt), or nil when the slot is free.
func (r *LessonRepository) FindConflicting(ctx context.Context, teacherID string, startAt, endAt time.Time) (*models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons
		WHERE teacher_id = $1 AND status = 'SCHEDULED'
		AND start_at < $3 AND start_at + make_interval(mins => duration_minutes) > $2
		ORDER BY start_at LIMIT 1`, lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, teacherID, startAt, endAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find conflicting lesson: %w", err)
	}
	return &lesson, nil
}

// ListBySlotInMonth returns COMPLETED or SCHEDULED lessons generated by a
// recurring slot whose start falls inside [monthStart, monthEnd).
func (r *LessonRepository) ListBySlotInMonth(ctx context.Context, slotID string, monthStart, monthEnd time.Time) ([]models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons
		WHERE recurring_slot_id = $1 AND status <> 'CANCELLED'
		AND start_at >= $2 AND start_at < $3
		ORDER BY start_at`, lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, slotID, monthStart, monthEnd); err != nil {
		return nil, fmt.Errorf("list slot lessons: %w", err)
	}
	return lessons, nil
}

// MaxStartBySlot returns the latest lesson start generated for a recurring
// slot, or nil if none exist.
func (r *LessonRepository) MaxStartBySlot(ctx context.Context, slotID string) (*time.Time, error) {
	const query = `SELECT MAX(start_at) FROM lessons WHERE recurring_slot_id = $1`
	var max sql.NullTime
	if err := r.db.GetContext(ctx, &max, query, slotID); err != nil {
		return nil, fmt.Errorf("max lesson start: %w", err)
	}
	if !max.Valid {
		return nil, nil
	}
	t := max.Time.UTC()
	return &t, nil
}

// UpdateNotes sets the notes on a lesson.
func (r *LessonRepository) UpdateNotes(ctx context.Context, id string, notes *string) error {
	const query = `UPDATE lessons SET notes = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update lesson notes: %w", err)
	}
	return nil
}

// UpdateStatus transitions a lesson to the given status.
func (r *LessonRepository) UpdateStatus(ctx context.Context, id string, status models.LessonStatus) error {
	const query = `UPDATE lessons SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update lesson status: %w", err)
	}
	return nil
}

// BulkInsertSkipConflicts inserts generated lessons, silently skipping rows
// that collide with an existing SCHEDULED lesson at the same start. Returns
// the number of rows actually inserted.
func (r *LessonRepository) BulkInsertSkipConflicts(ctx context.Context, lessons []models.Lesson) (int, error) {
	if len(lessons) == 0 {
		return 0, nil
	}
	const query = `INSERT INTO lessons (id, teacher_id, student_id, recurring_slot_id, start_at, duration_minutes, status, recurring, price, notes, created_at, updated_at)
		VALUES (:id, :teacher_id, :student_id, :recurring_slot_id, :start_at, :duration_minutes, :status, :recurring, :price, :notes, :created_at, :updated_at)
		ON CONFLICT (teacher_id, start_at) WHERE status = 'SCHEDULED' DO NOTHING`
	inserted := 0
	for i := range lessons {
		prepareLesson(&lessons[i])
		result, err := r.db.NamedExecContext(ctx, query, &lessons[i])
		if err != nil {
			return inserted, fmt.Errorf("insert generated lesson: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("insert generated lesson: %w", err)
		}
		inserted += int(affected)
	}
	return inserted, nil
}
