package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/muselane/studio-api/internal/models"
)

// SettingsRepository manages per-teacher lesson pricing settings.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get fetches the lesson settings for a teacher.
func (r *SettingsRepository) Get(ctx context.Context, teacherID string) (*models.LessonSettings, error) {
	const query = `SELECT teacher_id, price_30_min, price_60_min, currency, updated_at FROM lesson_settings WHERE teacher_id = $1`
	var settings models.LessonSettings
	if err := r.db.GetContext(ctx, &settings, query, teacherID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert creates or replaces the lesson settings for a teacher.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.LessonSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO lesson_settings (teacher_id, price_30_min, price_60_min, currency, updated_at)
		VALUES (:teacher_id, :price_30_min, :price_60_min, :currency, :updated_at)
		ON CONFLICT (teacher_id) DO UPDATE SET
			price_30_min = EXCLUDED.price_30_min,
			price_60_min = EXCLUDED.price_60_min,
			currency = EXCLUDED.currency,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert lesson settings: %w", err)
	}
	return nil
}
