package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context, teacherID string) (*models.LessonSettings, error)
	Upsert(ctx context.Context, settings *models.LessonSettings) error
}

type settingsTeacherStore interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// UpsertLessonSettingsRequest carries a teacher's per-duration pricing in
// minor currency units.
type UpsertLessonSettingsRequest struct {
	Price30Min int64  `json:"price_30_min" validate:"required,gt=0"`
	Price60Min int64  `json:"price_60_min" validate:"required,gt=0"`
	Currency   string `json:"currency" validate:"required,len=3,uppercase"`
}

// SettingsService manages per-teacher lesson pricing.
type SettingsService struct {
	repo     settingsRepository
	teachers settingsTeacherStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsRepository, teachers settingsTeacherStore, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, teachers: teachers, validate: validate, logger: logger}
}

// Get returns a teacher's pricing settings.
func (s *SettingsService) Get(ctx context.Context, claims *models.JWTClaims, teacherID string) (*models.LessonSettings, error) {
	if err := requireTeacherAccess(claims, teacherID); err != nil {
		return nil, err
	}
	settings, err := s.repo.Get(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson settings not configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson settings")
	}
	return settings, nil
}

// Upsert creates or replaces a teacher's pricing settings. Changing prices
// never rewrites the price snapshot on lessons that were already booked.
func (s *SettingsService) Upsert(ctx context.Context, claims *models.JWTClaims, teacherID string, req UpsertLessonSettingsRequest) (*models.LessonSettings, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson settings")
	}
	if err := requireTeacherAccess(claims, teacherID); err != nil {
		return nil, err
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	settings := &models.LessonSettings{
		TeacherID:  teacherID,
		Price30Min: req.Price30Min,
		Price60Min: req.Price60Min,
		Currency:   req.Currency,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save lesson settings")
	}

	s.logger.Info("lesson settings updated",
		zap.String("teacher_id", teacherID),
		zap.Int64("price_30_min", settings.Price30Min),
		zap.Int64("price_60_min", settings.Price60Min))
	return settings, nil
}
