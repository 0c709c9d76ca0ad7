package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
	tz "github.com/muselane/studio-api/pkg/timezone"
)

type bookingTxStore interface {
	CreateSingleLesson(ctx context.Context, lesson *models.Lesson) error
	CreateRecurringBooking(ctx context.Context, slot *models.RecurringSlot, lessons []models.Lesson) (int, error)
}

type bookingLessonStore interface {
	FindConflicting(ctx context.Context, teacherID string, startAt, endAt time.Time) (*models.Lesson, error)
}

type bookingStudentStore interface {
	FindByTeacherAndID(ctx context.Context, teacherID, studentID string) (*models.Student, error)
}

type bookingSettingsStore interface {
	Get(ctx context.Context, teacherID string) (*models.LessonSettings, error)
}

type bookingSlotStore interface {
	FindActiveByTuple(ctx context.Context, teacherID string, dayOfWeek, startMinute, durationMinutes int) (*models.RecurringSlot, error)
}

// availabilityGate is the slice of AvailabilityService the booking path needs.
type availabilityGate interface {
	TimezoneFor(ctx context.Context, teacherID string) (string, error)
	CheckSlot(ctx context.Context, teacherID string, startAt time.Time, durationMinutes int) error
}

// invoiceIssuer creates the immediate invoice for a single-lesson booking.
type invoiceIssuer interface {
	GenerateForLesson(ctx context.Context, lesson *models.Lesson) (*models.Invoice, error)
}

// bookingNotifier receives post-commit notification events.
type bookingNotifier interface {
	LessonBooked(lesson *models.Lesson, student *models.Student)
	RecurringBooked(slot *models.RecurringSlot, first *models.Lesson, student *models.Student)
}

// BookLessonRequest represents the booking payload. Duration is minutes; the
// date is the UTC start instant. Recurring weeks counts total occurrences
// including the first.
type BookLessonRequest struct {
	TeacherID      string             `json:"teacherId" validate:"required"`
	StudentID      string             `json:"studentId" validate:"required"`
	Date           time.Time          `json:"date" validate:"required"`
	Duration       int                `json:"duration" validate:"required,gt=0"`
	Type           models.BookingType `json:"type" validate:"required,oneof=single recurring"`
	RecurringWeeks int                `json:"recurringWeeks" validate:"omitempty,min=1,max=52"`
}

// BookingPolicy bounds what the engine accepts regardless of payload shape.
type BookingPolicy struct {
	MinLessonMinutes      int
	MaxLessonMinutes      int
	DefaultRecurringWeeks int
}

// BookingService orchestrates the booking unit of work: availability and
// conflict pre-checks, the locked transaction, and the post-commit side
// effects (immediate invoice, notification handoff).
type BookingService struct {
	bookings     bookingTxStore
	lessons      bookingLessonStore
	students     bookingStudentStore
	settings     bookingSettingsStore
	slots        bookingSlotStore
	availability availabilityGate
	invoices     invoiceIssuer
	notifier     bookingNotifier
	metrics      *MetricsService
	policy       BookingPolicy
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(
	bookings bookingTxStore,
	lessons bookingLessonStore,
	students bookingStudentStore,
	settings bookingSettingsStore,
	slots bookingSlotStore,
	availability availabilityGate,
	invoices invoiceIssuer,
	notifier bookingNotifier,
	metrics *MetricsService,
	policy BookingPolicy,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MinLessonMinutes <= 0 {
		policy.MinLessonMinutes = 15
	}
	if policy.MaxLessonMinutes <= 0 {
		policy.MaxLessonMinutes = 180
	}
	if policy.DefaultRecurringWeeks <= 0 {
		policy.DefaultRecurringWeeks = 12
	}
	return &BookingService{
		bookings:     bookings,
		lessons:      lessons,
		students:     students,
		settings:     settings,
		slots:        slots,
		availability: availability,
		invoices:     invoices,
		notifier:     notifier,
		metrics:      metrics,
		policy:       policy,
		validator:    validate,
		logger:       logger,
	}
}

// BookLesson books a single lesson or opens a recurring weekly slot with its
// first batch of occurrences. Availability and conflict rejections are
// expected outcomes of this flow, not failures.
func (s *BookingService) BookLesson(ctx context.Context, claims *models.JWTClaims, req BookLessonRequest) (*models.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if req.Duration < s.policy.MinLessonMinutes || req.Duration > s.policy.MaxLessonMinutes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson duration is outside the accepted range")
	}
	if err := requireTeacherAccess(claims, req.TeacherID); err != nil {
		return nil, err
	}

	result, err := s.book(ctx, req)
	s.metrics.RecordBooking(string(req.Type), bookingOutcome(err))
	return result, err
}

func (s *BookingService) book(ctx context.Context, req BookLessonRequest) (*models.BookingResult, error) {
	utcStart := req.Date.UTC()

	student, err := s.students.FindByTeacherAndID(ctx, req.TeacherID, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not on this teacher's roster")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	settings, err := s.settings.Get(ctx, req.TeacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrMissingLessonSettings, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson settings")
	}

	if err := s.availability.CheckSlot(ctx, req.TeacherID, utcStart, req.Duration); err != nil {
		return nil, err
	}

	// Outer conflict check: fast feedback before entering the transaction.
	endAt := utcStart.Add(time.Duration(req.Duration) * time.Minute)
	conflict, err := s.lessons.FindConflicting(ctx, req.TeacherID, utcStart, endAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson conflicts")
	}
	if conflict != nil {
		s.logger.Info("booking rejected by existing lesson",
			zap.String("teacher_id", req.TeacherID),
			zap.Time("start_at", utcStart),
			zap.String("conflicting_lesson_id", conflict.ID))
		return nil, appErrors.Clone(appErrors.ErrLessonConflict, "")
	}

	price := settings.PriceForDuration(req.Duration)

	if req.Type == models.BookingTypeSingle {
		return s.bookSingle(ctx, req, utcStart, price, student)
	}
	return s.bookRecurring(ctx, req, utcStart, price, student)
}

func (s *BookingService) bookSingle(ctx context.Context, req BookLessonRequest, utcStart time.Time, price int64, student *models.Student) (*models.BookingResult, error) {
	lesson := &models.Lesson{
		TeacherID:       req.TeacherID,
		StudentID:       req.StudentID,
		StartAt:         utcStart,
		DurationMinutes: req.Duration,
		Status:          models.LessonStatusScheduled,
		Price:           price,
	}
	if err := s.bookings.CreateSingleLesson(ctx, lesson); err != nil {
		return nil, s.mapBookingError(err, req.TeacherID, utcStart)
	}

	result := &models.BookingResult{Lesson: lesson}

	// Invoicing happens after the committed booking: a failure here leaves
	// the lesson booked and the invoice missing, never the other way round.
	invoice, err := s.invoices.GenerateForLesson(ctx, lesson)
	if err != nil {
		s.logger.Warn("single-lesson invoice generation failed",
			zap.String("lesson_id", lesson.ID),
			zap.Error(err))
	} else {
		result.Invoice = invoice
	}

	if s.notifier != nil {
		s.notifier.LessonBooked(lesson, student)
	}
	return result, nil
}

func (s *BookingService) bookRecurring(ctx context.Context, req BookLessonRequest, utcStart time.Time, price int64, student *models.Student) (*models.BookingResult, error) {
	zone, err := s.availability.TimezoneFor(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}
	parts, err := tz.ToLocalParts(utcStart, zone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to resolve local time")
	}

	existing, err := s.slots.FindActiveByTuple(ctx, req.TeacherID, int(parts.Weekday), parts.Minute, req.Duration)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check recurring slots")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRecurringSlot, "")
	}

	weeks := req.RecurringWeeks
	if weeks == 0 {
		weeks = s.policy.DefaultRecurringWeeks
	}

	// Each occurrence is rebuilt from the local wall clock, so the series
	// keeps its local time across DST boundaries.
	occurrences, err := tz.WeeklyOccurrences(parts.Weekday, parts.Minute, zone, utcStart, weeks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute occurrences")
	}

	slot := &models.RecurringSlot{
		TeacherID:       req.TeacherID,
		StudentID:       req.StudentID,
		DayOfWeek:       int(parts.Weekday),
		StartMinute:     parts.Minute,
		DurationMinutes: req.Duration,
		Price:           price,
		Timezone:        zone,
		Status:          models.RecurringSlotStatusActive,
	}

	lessons := make([]models.Lesson, 0, len(occurrences))
	for _, occ := range occurrences {
		lessons = append(lessons, models.Lesson{
			TeacherID:       req.TeacherID,
			StudentID:       req.StudentID,
			StartAt:         occ,
			DurationMinutes: req.Duration,
			Status:          models.LessonStatusScheduled,
			Recurring:       true,
			Price:           price,
		})
	}

	created, err := s.bookings.CreateRecurringBooking(ctx, slot, lessons)
	if err != nil {
		return nil, s.mapBookingError(err, req.TeacherID, utcStart)
	}

	first := &lessons[0]
	if s.notifier != nil {
		s.notifier.RecurringBooked(slot, first, student)
	}
	return &models.BookingResult{
		RecurringSlot:  slot,
		FirstLesson:    first,
		LessonsCreated: created,
	}, nil
}

// mapBookingError translates transactional rejections. A conflict surfaced
// by the inner re-check means the outer pre-check had already passed, so it
// is reported as a lost race rather than a plain overlap.
func (s *BookingService) mapBookingError(err error, teacherID string, startAt time.Time) error {
	switch {
	case appErrors.Is(err, appErrors.ErrLessonConflict):
		s.logger.Info("booking lost race to concurrent request",
			zap.String("teacher_id", teacherID),
			zap.Time("start_at", startAt))
		return appErrors.Clone(appErrors.ErrBookingConflict, "")
	case appErrors.Is(err, appErrors.ErrDuplicateRecurringSlot):
		return appErrors.Clone(appErrors.ErrDuplicateRecurringSlot, "")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete booking")
	}
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case appErrors.Is(err, appErrors.ErrLessonConflict),
		appErrors.Is(err, appErrors.ErrBookingConflict),
		appErrors.Is(err, appErrors.ErrDuplicateRecurringSlot):
		return "conflict"
	case appErrors.Is(err, appErrors.ErrOutsideAvailability),
		appErrors.Is(err, appErrors.ErrBlockedTime):
		return "unavailable"
	default:
		return "error"
	}
}
