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

// RecurringSlotRepository manages persistence for weekly recurring slots.
type RecurringSlotRepository struct {
	db *sqlx.DB
}

// NewRecurringSlotRepository constructs a RecurringSlotRepository.
func NewRecurringSlotRepository(db *sqlx.DB) *RecurringSlotRepository {
	return &RecurringSlotRepository{db: db}
}

const recurringSlotColumns = `id, teacher_id, student_id, day_of_week, start_minute, duration_minutes, price, timezone, status, created_at, updated_at`

// List returns recurring slots matching filters along with total count.
func (r *RecurringSlotRepository) List(ctx context.Context, filter models.RecurringSlotFilter) ([]models.RecurringSlot, int, error) {
	base := "FROM recurring_slots WHERE 1=1"
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
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at LIMIT %d OFFSET %d", recurringSlotColumns, base, size, offset)
	var slots []models.RecurringSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list recurring slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count recurring slots: %w", err)
	}

	return slots, total, nil
}

// FindByID fetches a recurring slot by ID.
func (r *RecurringSlotRepository) FindByID(ctx context.Context, id string) (*models.RecurringSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_slots WHERE id = $1", recurringSlotColumns)
	var slot models.RecurringSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListActive returns every ACTIVE recurring slot, oldest first. Batch jobs
// rely on the stable ordering for deterministic processing.
func (r *RecurringSlotRepository) ListActive(ctx context.Context) ([]models.RecurringSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_slots WHERE status = 'ACTIVE' ORDER BY created_at, id", recurringSlotColumns)
	var slots []models.RecurringSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list active recurring slots: %w", err)
	}
	return slots, nil
}

// FindActiveByTuple returns the ACTIVE slot occupying the given weekly
// schedule tuple for a teacher, or nil when the tuple is free.
func (r *RecurringSlotRepository) FindActiveByTuple(ctx context.Context, teacherID string, dayOfWeek, startMinute, durationMinutes int) (*models.RecurringSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM recurring_slots
		WHERE teacher_id = $1 AND day_of_week = $2 AND start_minute = $3 AND duration_minutes = $4 AND status = 'ACTIVE'`, recurringSlotColumns)
	var slot models.RecurringSlot
	if err := r.db.GetContext(ctx, &slot, query, teacherID, dayOfWeek, startMinute, durationMinutes); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find recurring slot by tuple: %w", err)
	}
	return &slot, nil
}

// Cancel marks a recurring slot CANCELLED.
func (r *RecurringSlotRepository) Cancel(ctx context.Context, id string) error {
	const query = `UPDATE recurring_slots SET status = 'CANCELLED', updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("cancel recurring slot: %w", err)
	}
	return nil
}
