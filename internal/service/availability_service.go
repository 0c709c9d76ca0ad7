package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
	tz "github.com/muselane/studio-api/pkg/timezone"
)

type availabilityRepository interface {
	ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error)
	FindWindowByID(ctx context.Context, id string) (*models.AvailabilityWindow, error)
	FindOverlappingWindows(ctx context.Context, teacherID string, dayOfWeek, startMinute, endMinute int, excludeID string) ([]models.AvailabilityWindow, error)
	CreateWindow(ctx context.Context, window *models.AvailabilityWindow) error
	UpdateWindow(ctx context.Context, window *models.AvailabilityWindow) error
	DeleteWindow(ctx context.Context, id string) error
	ListBlockedTimes(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedTime, error)
	FindBlockedIntersecting(ctx context.Context, teacherID string, startAt, endAt time.Time) ([]models.BlockedTime, error)
	FindBlockedByID(ctx context.Context, id string) (*models.BlockedTime, error)
	CreateBlockedTime(ctx context.Context, blocked *models.BlockedTime) error
	DeleteBlockedTime(ctx context.Context, id string) error
}

type availabilityTeacherStore interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CreateWindowRequest represents payload for creating availability windows.
type CreateWindowRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	Start     string `json:"start" validate:"required"`
	End       string `json:"end" validate:"required"`
}

// CreateBlockedTimeRequest represents payload for blocking a period.
type CreateBlockedTimeRequest struct {
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" validate:"required"`
	Reason  *string   `json:"reason" validate:"omitempty,max=500"`
}

// AvailabilityService resolves whether candidate instants are bookable and
// manages the weekly windows and blocked times they are checked against.
type AvailabilityService struct {
	repo            availabilityRepository
	teachers        availabilityTeacherStore
	cache           *CacheService
	validator       *validator.Validate
	logger          *zap.Logger
	defaultTimezone string
	cacheTTL        time.Duration
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, teachers availabilityTeacherStore, cache *CacheService, defaultTimezone string, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		repo:            repo,
		teachers:        teachers,
		cache:           cache,
		validator:       validate,
		logger:          logger,
		defaultTimezone: defaultTimezone,
		cacheTTL:        cacheTTL,
	}
}

// TimezoneFor resolves the IANA zone all of a teacher's weekly availability
// is expressed in. This is the only place the configured default applies; an
// unresolvable zone is a configuration error surfaced to the caller.
func (s *AvailabilityService) TimezoneFor(ctx context.Context, teacherID string) (string, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	zone := teacher.Timezone
	if zone == "" {
		zone = s.defaultTimezone
	}
	if err := tz.Validate(zone); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
			fmt.Sprintf("teacher timezone %q is not a valid IANA identifier", zone))
	}
	return zone, nil
}

// CheckSlot verifies that a candidate lesson [startAt, startAt+duration)
// falls inside an active weekly window and outside every blocked period.
// The window test is half-open on the local start time: the window's start
// minute is bookable, its end minute is not.
func (s *AvailabilityService) CheckSlot(ctx context.Context, teacherID string, startAt time.Time, durationMinutes int) error {
	zone, err := s.TimezoneFor(ctx, teacherID)
	if err != nil {
		return err
	}

	parts, err := tz.ToLocalParts(startAt, zone)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to resolve local time")
	}

	windows, err := s.repo.ListWindows(ctx, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability windows")
	}

	inside := false
	for _, w := range windows {
		if w.DayOfWeek == int(parts.Weekday) && w.Contains(parts.Minute) {
			inside = true
			break
		}
	}
	if !inside {
		s.logger.Debug("booking outside availability",
			zap.String("teacher_id", teacherID),
			zap.Time("start_at", startAt),
			zap.Int("local_minute", parts.Minute))
		return appErrors.Clone(appErrors.ErrOutsideAvailability, "")
	}

	endAt := startAt.Add(time.Duration(durationMinutes) * time.Minute)
	blocked, err := s.repo.FindBlockedIntersecting(ctx, teacherID, startAt, endAt)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked times")
	}
	if len(blocked) > 0 {
		s.logger.Debug("booking inside blocked time",
			zap.String("teacher_id", teacherID),
			zap.Time("start_at", startAt),
			zap.String("blocked_id", blocked[0].ID))
		return appErrors.Clone(appErrors.ErrBlockedTime, "")
	}

	return nil
}

// GetTeacherAvailability returns a teacher's windows plus blocked times in
// [from, to), cached briefly since the booking UI polls it. The second return
// value reports whether the result came from cache.
func (s *AvailabilityService) GetTeacherAvailability(ctx context.Context, teacherID string, from, to time.Time) (*models.TeacherAvailability, bool, error) {
	zone, err := s.TimezoneFor(ctx, teacherID)
	if err != nil {
		return nil, false, err
	}

	if from.IsZero() {
		from = time.Now().UTC()
	}
	if to.IsZero() || !to.After(from) {
		to = from.AddDate(0, 0, 28)
	}

	cacheKey := fmt.Sprintf("availability:%s:%s:%s", teacherID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached models.TeacherAvailability
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	windows, err := s.repo.ListWindows(ctx, teacherID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability windows")
	}
	blocked, err := s.repo.ListBlockedTimes(ctx, teacherID, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked times")
	}

	availability := &models.TeacherAvailability{
		TeacherID:    teacherID,
		Timezone:     zone,
		Windows:      windows,
		BlockedTimes: blocked,
	}
	if err := s.cache.Set(ctx, cacheKey, availability, s.cacheTTL); err != nil {
		s.logger.Debug("availability cache write failed", zap.Error(err))
	}
	return availability, false, nil
}

// CreateWindow adds a weekly availability window, rejecting overlap with any
// existing active window on the same day.
func (s *AvailabilityService) CreateWindow(ctx context.Context, claims *models.JWTClaims, teacherID string, req CreateWindowRequest) (*models.AvailabilityWindow, error) {
	if err := requireTeacherAccess(claims, teacherID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability window payload")
	}

	startMinute, endMinute, err := parseWindowBounds(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if _, err := s.TimezoneFor(ctx, teacherID); err != nil {
		return nil, err
	}

	overlapping, err := s.repo.FindOverlappingWindows(ctx, teacherID, req.DayOfWeek, startMinute, endMinute, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check window overlap")
	}
	if len(overlapping) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "availability window overlaps an existing window")
	}

	window := &models.AvailabilityWindow{
		TeacherID:   teacherID,
		DayOfWeek:   req.DayOfWeek,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		Active:      true,
	}
	if err := s.repo.CreateWindow(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability window")
	}
	s.invalidate(ctx, teacherID)
	return window, nil
}

// UpdateWindow reschedules an availability window.
func (s *AvailabilityService) UpdateWindow(ctx context.Context, claims *models.JWTClaims, teacherID, windowID string, req CreateWindowRequest) (*models.AvailabilityWindow, error) {
	if err := requireTeacherAccess(claims, teacherID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability window payload")
	}

	window, err := s.loadOwnedWindow(ctx, teacherID, windowID)
	if err != nil {
		return nil, err
	}

	startMinute, endMinute, err := parseWindowBounds(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	overlapping, err := s.repo.FindOverlappingWindows(ctx, teacherID, req.DayOfWeek, startMinute, endMinute, windowID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check window overlap")
	}
	if len(overlapping) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "availability window overlaps an existing window")
	}

	window.DayOfWeek = req.DayOfWeek
	window.StartMinute = startMinute
	window.EndMinute = endMinute
	if err := s.repo.UpdateWindow(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability window")
	}
	s.invalidate(ctx, teacherID)
	return window, nil
}

// DeleteWindow deactivates an availability window.
func (s *AvailabilityService) DeleteWindow(ctx context.Context, claims *models.JWTClaims, teacherID, windowID string) error {
	if err := requireTeacherAccess(claims, teacherID); err != nil {
		return err
	}
	if _, err := s.loadOwnedWindow(ctx, teacherID, windowID); err != nil {
		return err
	}
	if err := s.repo.DeleteWindow(ctx, windowID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability window")
	}
	s.invalidate(ctx, teacherID)
	return nil
}

// CreateBlockedTime blocks an absolute UTC period.
func (s *AvailabilityService) CreateBlockedTime(ctx context.Context, claims *models.JWTClaims, teacherID string, req CreateBlockedTimeRequest) (*models.BlockedTime, error) {
	if err := requireTeacherAccess(claims, teacherID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked time payload")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "blocked time must end after it starts")
	}

	zone, err := s.TimezoneFor(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	blocked := &models.BlockedTime{
		TeacherID: teacherID,
		StartAt:   req.StartAt.UTC(),
		EndAt:     req.EndAt.UTC(),
		Reason:    req.Reason,
		Timezone:  zone,
	}
	if err := s.repo.CreateBlockedTime(ctx, blocked); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create blocked time")
	}
	s.invalidate(ctx, teacherID)
	return blocked, nil
}

// DeleteBlockedTime removes a blocked period.
func (s *AvailabilityService) DeleteBlockedTime(ctx context.Context, claims *models.JWTClaims, teacherID, blockedID string) error {
	if err := requireTeacherAccess(claims, teacherID); err != nil {
		return err
	}
	blocked, err := s.repo.FindBlockedByID(ctx, blockedID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "blocked time not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked time")
	}
	if blocked.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrNotFound, "blocked time not found")
	}
	if err := s.repo.DeleteBlockedTime(ctx, blockedID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete blocked time")
	}
	s.invalidate(ctx, teacherID)
	return nil
}

func (s *AvailabilityService) loadOwnedWindow(ctx context.Context, teacherID, windowID string) (*models.AvailabilityWindow, error) {
	window, err := s.repo.FindWindowByID(ctx, windowID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability window")
	}
	if window.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
	}
	return window, nil
}

func (s *AvailabilityService) invalidate(ctx context.Context, teacherID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("availability:%s:*", teacherID)); err != nil {
		s.logger.Debug("availability cache invalidation failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}

func parseWindowBounds(start, end string) (int, int, error) {
	startMinute, err := tz.ParseClock(start)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window start time")
	}
	endMinute, err := tz.ParseClock(end)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window end time")
	}
	if endMinute <= startMinute {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "window end must be after its start")
	}
	return startMinute, endMinute, nil
}

// requireTeacherAccess permits admins and the owning teacher.
func requireTeacherAccess(claims *models.JWTClaims, teacherID string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if claims.TeacherID == teacherID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to manage this teacher")
}
