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
)

type invoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	ExistsForMonth(ctx context.Context, teacherID, studentID, month string) (bool, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	ListItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error)
	UpdateStatus(ctx context.Context, invoice *models.Invoice) error
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

type invoiceSettingsStore interface {
	Get(ctx context.Context, teacherID string) (*models.LessonSettings, error)
}

type invoiceStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// invoiceNotifier receives post-commit invoice events.
type invoiceNotifier interface {
	InvoiceGenerated(invoice *models.Invoice, student *models.Student)
}

// UpdateInvoiceStatusRequest represents a manual invoice status change.
// Payment fields are metadata about an externally settled payment.
type UpdateInvoiceStatusRequest struct {
	Status        models.InvoiceStatus `json:"status" validate:"required,oneof=PENDING SENT VIEWED PAID CANCELLED"`
	PaidAt        *time.Time           `json:"paid_at"`
	PaymentMethod *string              `json:"payment_method" validate:"omitempty,max=100"`
	PaymentNotes  *string              `json:"payment_notes" validate:"omitempty,max=1000"`
}

// InvoiceService creates invoices with computed pricing and sequential
// numbering and manages their lifecycle.
type InvoiceService struct {
	repo      invoiceRepository
	settings  invoiceSettingsStore
	students  invoiceStudentStore
	notifier  invoiceNotifier
	metrics   *MetricsService
	dueIn     time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInvoiceService constructs an InvoiceService. dueInDays sets the offset
// between generation and the payment due date.
func NewInvoiceService(repo invoiceRepository, settings invoiceSettingsStore, students invoiceStudentStore, notifier invoiceNotifier, metrics *MetricsService, dueInDays int, validate *validator.Validate, logger *zap.Logger) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dueInDays <= 0 {
		dueInDays = 14
	}
	return &InvoiceService{
		repo:      repo,
		settings:  settings,
		students:  students,
		notifier:  notifier,
		metrics:   metrics,
		dueIn:     time.Duration(dueInDays) * 24 * time.Hour,
		validator: validate,
		logger:    logger,
	}
}

// GenerateForLesson creates the immediate invoice for a just-booked single
// lesson. The rate is read from the teacher's settings at invoicing time.
func (s *InvoiceService) GenerateForLesson(ctx context.Context, lesson *models.Lesson) (*models.Invoice, error) {
	settings, err := s.settings.Get(ctx, lesson.TeacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrMissingLessonSettings, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson settings")
	}

	month := lesson.StartAt.UTC().Format("2006-01")
	rate := settings.PriceForDuration(lesson.DurationMinutes)
	lessonDate := lesson.StartAt.UTC()
	items := []models.InvoiceItem{{
		Description: lessonItemDescription(lesson.StartAt, lesson.DurationMinutes),
		LessonID:    &lesson.ID,
		LessonDate:  &lessonDate,
		Quantity:    1,
		Rate:        rate,
		Amount:      rate,
	}}

	return s.create(ctx, lesson.TeacherID, lesson.StudentID, month, items)
}

// CreateForLessons aggregates a recurring slot's lessons for one month into
// a single invoice. Rates come from the teacher's settings at generation
// time, per duration tier.
func (s *InvoiceService) CreateForLessons(ctx context.Context, teacherID, studentID, month string, lessons []models.Lesson) (*models.Invoice, error) {
	settings, err := s.settings.Get(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrMissingLessonSettings, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson settings")
	}

	items := make([]models.InvoiceItem, 0, len(lessons))
	for i := range lessons {
		lesson := lessons[i]
		rate := settings.PriceForDuration(lesson.DurationMinutes)
		lessonDate := lesson.StartAt.UTC()
		lessonID := lesson.ID
		items = append(items, models.InvoiceItem{
			Description: lessonItemDescription(lesson.StartAt, lesson.DurationMinutes),
			LessonID:    &lessonID,
			LessonDate:  &lessonDate,
			Quantity:    1,
			Rate:        rate,
			Amount:      rate,
		})
	}

	return s.create(ctx, teacherID, studentID, month, items)
}

func (s *InvoiceService) create(ctx context.Context, teacherID, studentID, month string, items []models.InvoiceItem) (*models.Invoice, error) {
	year, err := yearOfMonth(month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice month")
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.Amount
	}

	invoice := &models.Invoice{
		TeacherID: teacherID,
		StudentID: &studentID,
		Year:      year,
		Month:     month,
		DueDate:   time.Now().UTC().Add(s.dueIn),
		Subtotal:  subtotal,
		Total:     subtotal,
		Status:    models.InvoiceStatusPending,
		Items:     items,
	}

	// Payer is snapshotted at issue time; later roster edits never rewrite an
	// issued invoice.
	student, studentErr := s.students.FindByID(ctx, studentID)
	if studentErr == nil {
		invoice.PayerName = &student.FullName
		invoice.PayerEmail = &student.Email
	}

	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	s.metrics.RecordInvoicesGenerated(1)

	if s.notifier != nil && studentErr == nil {
		s.notifier.InvoiceGenerated(invoice, student)
	}
	return invoice, nil
}

// List returns invoices plus pagination data, scoped to the caller's role.
func (s *InvoiceService) List(ctx context.Context, claims *models.JWTClaims, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	if err := scopeInvoiceFilter(claims, &filter); err != nil {
		return nil, nil, err
	}
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
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
	return invoices, pagination, nil
}

// Get returns an invoice with its items.
func (s *InvoiceService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInvoiceAccess(claims, invoice); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice items")
	}
	invoice.Items = items
	return invoice, nil
}

// UpdateStatus applies a manual lifecycle transition. Only forward moves are
// allowed; marking PAID records the payment metadata.
func (s *InvoiceService) UpdateStatus(ctx context.Context, claims *models.JWTClaims, id string, req UpdateInvoiceStatusRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice status payload")
	}

	invoice, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTeacherAccess(claims, invoice.TeacherID); err != nil {
		return nil, err
	}

	if !invoice.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot transition invoice from %s to %s", invoice.Status, req.Status))
	}

	invoice.Status = req.Status
	if req.Status == models.InvoiceStatusPaid {
		paidAt := time.Now().UTC()
		if req.PaidAt != nil {
			paidAt = req.PaidAt.UTC()
		}
		invoice.PaidAt = &paidAt
		invoice.PaymentMethod = req.PaymentMethod
		invoice.PaymentNotes = req.PaymentNotes
	}

	if err := s.repo.UpdateStatus(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invoice status")
	}
	return invoice, nil
}

// MarkOverdue flips unpaid invoices past their due date to OVERDUE.
func (s *InvoiceService) MarkOverdue(ctx context.Context) (int, error) {
	affected, err := s.repo.MarkOverdue(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invoices overdue")
	}
	if affected > 0 {
		s.logger.Info("invoices marked overdue", zap.Int("count", affected))
	}
	return affected, nil
}

func (s *InvoiceService) load(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	return invoice, nil
}

func lessonItemDescription(startAt time.Time, durationMinutes int) string {
	return fmt.Sprintf("Lesson %s (%d min)", startAt.UTC().Format("2006-01-02"), durationMinutes)
}

func yearOfMonth(month string) (int, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0, fmt.Errorf("parse month %q: %w", month, err)
	}
	return t.Year(), nil
}

func scopeInvoiceFilter(claims *models.JWTClaims, filter *models.InvoiceFilter) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		filter.TeacherID = claims.TeacherID
		return nil
	case models.RoleStudent:
		filter.StudentID = claims.StudentID
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "")
}

func requireInvoiceAccess(claims *models.JWTClaims, invoice *models.Invoice) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if claims.TeacherID == invoice.TeacherID {
			return nil
		}
	case models.RoleStudent:
		if invoice.StudentID != nil && claims.StudentID == *invoice.StudentID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this invoice")
}
