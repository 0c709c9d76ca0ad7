package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
	tz "github.com/muselane/studio-api/pkg/timezone"
)

type recurringSlotStore interface {
	List(ctx context.Context, filter models.RecurringSlotFilter) ([]models.RecurringSlot, int, error)
	FindByID(ctx context.Context, id string) (*models.RecurringSlot, error)
	ListActive(ctx context.Context) ([]models.RecurringSlot, error)
	Cancel(ctx context.Context, id string) error
}

type recurringLessonStore interface {
	ListBySlotInMonth(ctx context.Context, slotID string, monthStart, monthEnd time.Time) ([]models.Lesson, error)
	MaxStartBySlot(ctx context.Context, slotID string) (*time.Time, error)
	BulkInsertSkipConflicts(ctx context.Context, lessons []models.Lesson) (int, error)
}

type recurringInvoiceStore interface {
	ExistsForMonth(ctx context.Context, teacherID, studentID, month string) (bool, error)
}

// invoiceCreator is the slice of InvoiceService the monthly batch needs.
type invoiceCreator interface {
	CreateForLessons(ctx context.Context, teacherID, studentID, month string, lessons []models.Lesson) (*models.Invoice, error)
}

// jobLocker provides the singleton locks for batch runs.
type jobLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

const (
	lockKeyGenerateLessons  = "jobs:generate-lessons"
	lockKeyGenerateInvoices = "jobs:generate-invoices"
)

// RecurringService manages recurring slot lifecycle and the batch jobs that
// extend their occurrences and bill them monthly.
type RecurringService struct {
	slots    recurringSlotStore
	lessons  recurringLessonStore
	invoices recurringInvoiceStore
	creator  invoiceCreator
	locker   jobLocker
	metrics  *MetricsService
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewRecurringService constructs a RecurringService.
func NewRecurringService(slots recurringSlotStore, lessons recurringLessonStore, invoices recurringInvoiceStore, creator invoiceCreator, locker jobLocker, metrics *MetricsService, lockTTL time.Duration, logger *zap.Logger) *RecurringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &RecurringService{
		slots:    slots,
		lessons:  lessons,
		invoices: invoices,
		creator:  creator,
		locker:   locker,
		metrics:  metrics,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// List returns recurring slots plus pagination data, scoped to the caller.
func (s *RecurringService) List(ctx context.Context, claims *models.JWTClaims, filter models.RecurringSlotFilter) ([]models.RecurringSlot, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	switch claims.Role {
	case models.RoleTeacher:
		filter.TeacherID = claims.TeacherID
	case models.RoleStudent:
		filter.StudentID = claims.StudentID
	}

	slots, total, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recurring slots")
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
	return slots, pagination, nil
}

// Get returns a recurring slot by id.
func (s *RecurringService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.RecurringSlot, error) {
	slot, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTeacherAccess(claims, slot.TeacherID); err != nil {
		return nil, err
	}
	return slot, nil
}

// CancelSlot stops future occurrence generation for a slot. Lessons already
// created stay untouched and must be cancelled individually.
func (s *RecurringService) CancelSlot(ctx context.Context, claims *models.JWTClaims, id string) error {
	slot, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := requireTeacherAccess(claims, slot.TeacherID); err != nil {
		return err
	}
	if slot.Status != models.RecurringSlotStatusActive {
		return appErrors.Clone(appErrors.ErrValidation, "recurring slot is already cancelled")
	}

	if err := s.slots.Cancel(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel recurring slot")
	}
	s.logger.Info("recurring slot cancelled",
		zap.String("slot_id", id),
		zap.String("teacher_id", slot.TeacherID))
	return nil
}

// GenerateUpcomingLessons extends every ACTIVE slot's occurrences out to the
// given horizon in weeks. Per-slot failures are collected, never fatal; rows
// colliding with existing lessons are skipped at the storage layer.
func (s *RecurringService) GenerateUpcomingLessons(ctx context.Context, weeks int) (*models.LessonGenerationSummary, error) {
	if weeks <= 0 {
		weeks = 8
	}

	acquired, err := s.locker.AcquireLock(ctx, lockKeyGenerateLessons, s.lockTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire generation lock")
	}
	if !acquired {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lesson generation is already running")
	}
	defer func() {
		if err := s.locker.ReleaseLock(ctx, lockKeyGenerateLessons); err != nil {
			s.logger.Warn("failed to release generation lock", zap.Error(err))
		}
	}()

	slots, err := s.slots.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active slots")
	}

	summary := &models.LessonGenerationSummary{Errors: []string{}}
	now := time.Now().UTC()
	horizon := now.AddDate(0, 0, 7*weeks)
	for _, slot := range slots {
		summary.SlotsProcessed++

		// Resume strictly after the latest occurrence on record, in any
		// status: a cancelled occurrence stays cancelled, it is not
		// recreated by the next run.
		after := now
		last, err := s.lessons.MaxStartBySlot(ctx, slot.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("slot %s: %v", slot.ID, err))
			continue
		}
		if last != nil && last.After(after) {
			after = last.Add(time.Minute)
		}
		if !after.Before(horizon) {
			continue
		}

		occurrences, err := tz.WeeklyOccurrences(time.Weekday(slot.DayOfWeek), slot.StartMinute, slot.Timezone, after, weeks)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("slot %s: %v", slot.ID, err))
			continue
		}

		slotID := slot.ID
		lessons := make([]models.Lesson, 0, len(occurrences))
		for _, occ := range occurrences {
			if !occ.Before(horizon) {
				break
			}
			lessons = append(lessons, models.Lesson{
				TeacherID:       slot.TeacherID,
				StudentID:       slot.StudentID,
				RecurringSlotID: &slotID,
				StartAt:         occ,
				DurationMinutes: slot.DurationMinutes,
				Status:          models.LessonStatusScheduled,
				Recurring:       true,
				Price:           slot.Price,
			})
		}
		if len(lessons) == 0 {
			continue
		}

		inserted, err := s.lessons.BulkInsertSkipConflicts(ctx, lessons)
		summary.LessonsCreated += inserted
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("slot %s: %v", slot.ID, err))
			continue
		}
	}

	s.metrics.RecordLessonsGenerated(summary.LessonsCreated)
	s.logger.Info("lesson generation finished",
		zap.Int("slots", summary.SlotsProcessed),
		zap.Int("created", summary.LessonsCreated),
		zap.Int("errors", len(summary.Errors)))
	return summary, nil
}

// GenerateMonthlyInvoices ensures one invoice per (teacher, student, month)
// for every ACTIVE slot with billable lessons in the month. The run is
// idempotent: existing invoices and zero-lesson slots are skipped, per-slot
// failures are collected and never abort the batch.
func (s *RecurringService) GenerateMonthlyInvoices(ctx context.Context, month string) (*models.InvoiceGenerationSummary, error) {
	monthStart, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "month must be formatted YYYY-MM")
	}
	monthStart = monthStart.UTC()
	monthEnd := monthStart.AddDate(0, 1, 0)

	lockKey := fmt.Sprintf("%s:%s", lockKeyGenerateInvoices, month)
	acquired, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire invoice generation lock")
	}
	if !acquired {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice generation is already running for this month")
	}
	defer func() {
		if err := s.locker.ReleaseLock(ctx, lockKey); err != nil {
			s.logger.Warn("failed to release invoice generation lock", zap.Error(err))
		}
	}()

	// Only an infrastructure failure aborts the run; everything below is
	// isolated per slot.
	slots, err := s.slots.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active slots")
	}

	summary := &models.InvoiceGenerationSummary{Month: month, Errors: []string{}}
	for _, slot := range slots {
		exists, err := s.invoices.ExistsForMonth(ctx, slot.TeacherID, slot.StudentID, month)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("slot %s: %v", slot.ID, err))
			continue
		}
		if exists {
			summary.SlotsSkipped++
			continue
		}

		lessons, err := s.lessons.ListBySlotInMonth(ctx, slot.ID, monthStart, monthEnd)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("slot %s: %v", slot.ID, err))
			continue
		}
		if len(lessons) == 0 {
			summary.SlotsSkipped++
			continue
		}

		if _, err := s.creator.CreateForLessons(ctx, slot.TeacherID, slot.StudentID, month, lessons); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("slot %s: %v", slot.ID, appErrors.FromError(err).Message))
			continue
		}
		summary.InvoicesCreated++
	}

	s.logger.Info("monthly invoice generation finished",
		zap.String("month", month),
		zap.Int("created", summary.InvoicesCreated),
		zap.Int("skipped", summary.SlotsSkipped),
		zap.Int("errors", len(summary.Errors)))
	return summary, nil
}

func (s *RecurringService) load(ctx context.Context, id string) (*models.RecurringSlot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recurring slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recurring slot")
	}
	return slot, nil
}
