package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
	tz "github.com/muselane/studio-api/pkg/timezone"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
}

// CreateTeacherRequest carries a new teacher profile. Timezone is required:
// every availability window is interpreted in it.
type CreateTeacherRequest struct {
	Email      string  `json:"email" validate:"required,email"`
	FullName   string  `json:"full_name" validate:"required,min=2,max=120"`
	Timezone   string  `json:"timezone" validate:"required"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	Instrument *string `json:"instrument" validate:"omitempty,max=64"`
}

// UpdateTeacherRequest carries a partial teacher profile update.
type UpdateTeacherRequest struct {
	Email      *string `json:"email" validate:"omitempty,email"`
	FullName   *string `json:"full_name" validate:"omitempty,min=2,max=120"`
	Timezone   *string `json:"timezone"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	Instrument *string `json:"instrument" validate:"omitempty,max=64"`
}

// TeacherService manages teacher profiles.
type TeacherService struct {
	repo     teacherRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validate: validate, logger: logger}
}

// List returns teachers plus pagination data.
func (s *TeacherService) List(ctx context.Context, claims *models.JWTClaims, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can list teachers")
	}

	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return teachers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a teacher profile by id.
func (s *TeacherService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Teacher, error) {
	if err := requireTeacherAccess(claims, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create registers a new teacher profile. ADMIN only.
func (s *TeacherService) Create(ctx context.Context, claims *models.JWTClaims, req CreateTeacherRequest) (*models.Teacher, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can create teachers")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher")
	}
	if err := tz.Validate(req.Timezone); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "timezone must be a valid IANA identifier")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.ExistsByEmail(ctx, email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
	}

	teacher := &models.Teacher{
		Email:      email,
		FullName:   req.FullName,
		Timezone:   req.Timezone,
		Phone:      req.Phone,
		Instrument: req.Instrument,
		Active:     true,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	s.logger.Info("teacher created",
		zap.String("teacher_id", teacher.ID),
		zap.String("timezone", teacher.Timezone))
	return teacher, nil
}

// Update applies a partial update to a teacher profile.
func (s *TeacherService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := requireTeacherAccess(claims, id); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher update")
	}

	teacher, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != teacher.Email {
			exists, err := s.repo.ExistsByEmail(ctx, email, id)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
			}
			teacher.Email = email
		}
	}
	if req.FullName != nil {
		teacher.FullName = *req.FullName
	}
	if req.Timezone != nil {
		if err := tz.Validate(*req.Timezone); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "timezone must be a valid IANA identifier")
		}
		teacher.Timezone = *req.Timezone
	}
	if req.Phone != nil {
		teacher.Phone = req.Phone
	}
	if req.Instrument != nil {
		teacher.Instrument = req.Instrument
	}

	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Deactivate retires a teacher profile without deleting history. ADMIN only.
func (s *TeacherService) Deactivate(ctx context.Context, claims *models.JWTClaims, id string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can deactivate teachers")
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate teacher")
	}
	s.logger.Info("teacher deactivated", zap.String("teacher_id", id))
	return nil
}

func (s *TeacherService) load(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}
