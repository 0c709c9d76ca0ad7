package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muselane/studio-api/internal/models"
)

// AvailabilityRepository manages availability windows and blocked times.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListWindows returns a teacher's active availability windows ordered by
// day of week and start minute.
func (r *AvailabilityRepository) ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	const query = `SELECT id, teacher_id, day_of_week, start_minute, end_minute, active, created_at, updated_at
		FROM availability_windows WHERE teacher_id = $1 AND active = TRUE
		ORDER BY day_of_week, start_minute`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// FindWindowByID fetches a single availability window.
func (r *AvailabilityRepository) FindWindowByID(ctx context.Context, id string) (*models.AvailabilityWindow, error) {
	const query = `SELECT id, teacher_id, day_of_week, start_minute, end_minute, active, created_at, updated_at
		FROM availability_windows WHERE id = $1`
	var window models.AvailabilityWindow
	if err := r.db.GetContext(ctx, &window, query, id); err != nil {
		return nil, err
	}
	return &window, nil
}

// FindOverlappingWindows returns active windows on the same weekday whose
// minute range intersects [startMinute, endMinute).
func (r *AvailabilityRepository) FindOverlappingWindows(ctx context.Context, teacherID string, dayOfWeek, startMinute, endMinute int, excludeID string) ([]models.AvailabilityWindow, error) {
	query := `SELECT id, teacher_id, day_of_week, start_minute, end_minute, active, created_at, updated_at
		FROM availability_windows
		WHERE teacher_id = $1 AND day_of_week = $2 AND active = TRUE
		AND start_minute < $4 AND end_minute > $3`
	args := []interface{}{teacherID, dayOfWeek, startMinute, endMinute}
	if excludeID != "" {
		query += " AND id <> $5"
		args = append(args, excludeID)
	}
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping windows: %w", err)
	}
	return windows, nil
}

// CreateWindow inserts a new availability window.
func (r *AvailabilityRepository) CreateWindow(ctx context.Context, window *models.AvailabilityWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if window.CreatedAt.IsZero() {
		window.CreatedAt = now
	}
	window.UpdatedAt = now

	const query = `INSERT INTO availability_windows (id, teacher_id, day_of_week, start_minute, end_minute, active, created_at, updated_at)
		VALUES (:id, :teacher_id, :day_of_week, :start_minute, :end_minute, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create availability window: %w", err)
	}
	return nil
}

// UpdateWindow modifies an availability window's schedule.
func (r *AvailabilityRepository) UpdateWindow(ctx context.Context, window *models.AvailabilityWindow) error {
	window.UpdatedAt = time.Now().UTC()
	const query = `UPDATE availability_windows SET day_of_week = :day_of_week, start_minute = :start_minute, end_minute = :end_minute, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("update availability window: %w", err)
	}
	return nil
}

// DeleteWindow deactivates an availability window.
func (r *AvailabilityRepository) DeleteWindow(ctx context.Context, id string) error {
	const query = `UPDATE availability_windows SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete availability window: %w", err)
	}
	return nil
}

// ListBlockedTimes returns a teacher's blocked times intersecting [from, to).
func (r *AvailabilityRepository) ListBlockedTimes(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedTime, error) {
	const query = `SELECT id, teacher_id, start_at, end_at, reason, timezone, created_at
		FROM blocked_times WHERE teacher_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at`
	var blocked []models.BlockedTime
	if err := r.db.SelectContext(ctx, &blocked, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list blocked times: %w", err)
	}
	return blocked, nil
}

// FindBlockedIntersecting returns blocked times that intersect the half-open
// interval [startAt, endAt).
func (r *AvailabilityRepository) FindBlockedIntersecting(ctx context.Context, teacherID string, startAt, endAt time.Time) ([]models.BlockedTime, error) {
	const query = `SELECT id, teacher_id, start_at, end_at, reason, timezone, created_at
		FROM blocked_times WHERE teacher_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at`
	var blocked []models.BlockedTime
	if err := r.db.SelectContext(ctx, &blocked, query, teacherID, startAt, endAt); err != nil {
		return nil, fmt.Errorf("find blocked times: %w", err)
	}
	return blocked, nil
}

// FindBlockedByID fetches a single blocked time entry.
func (r *AvailabilityRepository) FindBlockedByID(ctx context.Context, id string) (*models.BlockedTime, error) {
	const query = `SELECT id, teacher_id, start_at, end_at, reason, timezone, created_at FROM blocked_times WHERE id = $1`
	var blocked models.BlockedTime
	if err := r.db.GetContext(ctx, &blocked, query, id); err != nil {
		return nil, err
	}
	return &blocked, nil
}

// CreateBlockedTime inserts a new blocked time entry.
func (r *AvailabilityRepository) CreateBlockedTime(ctx context.Context, blocked *models.BlockedTime) error {
	if blocked.ID == "" {
		blocked.ID = uuid.NewString()
	}
	if blocked.CreatedAt.IsZero() {
		blocked.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO blocked_times (id, teacher_id, start_at, end_at, reason, timezone, created_at)
		VALUES (:id, :teacher_id, :start_at, :end_at, :reason, :timezone, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, blocked); err != nil {
		return fmt.Errorf("create blocked time: %w", err)
	}
	return nil
}

// DeleteBlockedTime removes a blocked time entry.
func (r *AvailabilityRepository) DeleteBlockedTime(ctx context.Context, id string) error {
	const query = `DELETE FROM blocked_times WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete blocked time: %w", err)
	}
	return nil
}
