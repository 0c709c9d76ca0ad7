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

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	UpdateNotes(ctx context.Context, id string, notes *string) error
	UpdateStatus(ctx context.Context, id string, status models.LessonStatus) error
}

// lessonNotifier receives post-commit lesson lifecycle events.
type lessonNotifier interface {
	LessonCancelled(lesson *models.Lesson)
}

// UpdateLessonRequest mutates a lesson's notes and completion status. The
// contract has no date field: a booked time can be cancelled but never moved.
type UpdateLessonRequest struct {
	Notes  *string              `json:"notes" validate:"omitempty,max=2000"`
	Status *models.LessonStatus `json:"status" validate:"omitempty,oneof=COMPLETED"`
}

// LessonService manages scheduled lessons after booking.
type LessonService struct {
	repo      lessonRepository
	notifier  lessonNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs a LessonService.
func NewLessonService(repo lessonRepository, notifier lessonNotifier, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, notifier: notifier, validator: validate, logger: logger}
}

// List returns lessons plus pagination data, scoped to the caller's role.
func (s *LessonService) List(ctx context.Context, claims *models.JWTClaims, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	switch claims.Role {
	case models.RoleTeacher:
		filter.TeacherID = claims.TeacherID
	case models.RoleStudent:
		filter.StudentID = claims.StudentID
	}

	lessons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return lessons, pagination, nil
}

// Get returns a lesson by id.
func (s *LessonService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Lesson, error) {
	lesson, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireLessonAccess(claims, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// Update mutates a lesson's notes and, for SCHEDULED lessons, marks it
// COMPLETED. Date changes are rejected by contract.
func (s *LessonService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTeacherAccess(claims, lesson.TeacherID); err != nil {
		return nil, err
	}

	if req.Status != nil {
		if lesson.Status != models.LessonStatusScheduled {
			return nil, appErrors.Clone(appErrors.ErrValidation, "only a scheduled lesson can be completed")
		}
		if err := s.repo.UpdateStatus(ctx, id, *req.Status); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson status")
		}
		lesson.Status = *req.Status
	}

	if req.Notes != nil {
		if err := s.repo.UpdateNotes(ctx, id, req.Notes); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson notes")
		}
		lesson.Notes = req.Notes
	}

	return lesson, nil
}

// Cancel cancels a future SCHEDULED lesson. Past or non-scheduled lessons
// cannot be cancelled.
func (s *LessonService) Cancel(ctx context.Context, claims *models.JWTClaims, id string) error {
	lesson, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := requireTeacherAccess(claims, lesson.TeacherID); err != nil {
		return err
	}

	if lesson.Status != models.LessonStatusScheduled {
		return appErrors.Clone(appErrors.ErrValidation, "only a scheduled lesson can be cancelled")
	}
	if !lesson.StartAt.After(time.Now().UTC()) {
		return appErrors.Clone(appErrors.ErrValidation, "a lesson that already started cannot be cancelled")
	}

	if err := s.repo.UpdateStatus(ctx, id, models.LessonStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel lesson")
	}
	lesson.Status = models.LessonStatusCancelled
	if s.notifier != nil {
		s.notifier.LessonCancelled(lesson)
	}
	return nil
}

func (s *LessonService) load(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

func requireLessonAccess(claims *models.JWTClaims, lesson *models.Lesson) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if claims.TeacherID == lesson.TeacherID {
			return nil
		}
	case models.RoleStudent:
		if claims.StudentID == lesson.StudentID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this lesson")
}
