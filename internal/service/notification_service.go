package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muselane/studio-api/internal/models"
	"github.com/muselane/studio-api/pkg/jobs"
)

// TemplateRenderer turns a notification type plus variables into an email.
type TemplateRenderer interface {
	Render(t models.NotificationType, vars map[string]string) (*models.EmailMessage, error)
}

// EmailSender delivers a rendered email. The default implementation only
// logs; wiring a real provider is a deployment concern.
type EmailSender interface {
	Send(ctx context.Context, to string, msg *models.EmailMessage) error
}

type notificationStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// NotificationConfig tunes the dispatch worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService dispatches fire-and-forget emails through a background
// queue. Events are enqueued after the transaction that caused them has
// committed; a full buffer or a failed delivery is logged and dropped, it is
// never surfaced to the booking or invoice caller.
type NotificationService struct {
	queue    *jobs.Queue
	renderer TemplateRenderer
	sender   EmailSender
	students notificationStudentStore
	logger   *zap.Logger
}

// NewNotificationService constructs the dispatcher and its queue. Call Start
// before enqueueing events.
func NewNotificationService(renderer TemplateRenderer, sender EmailSender, students notificationStudentStore, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = NewStudioTemplateRenderer()
	}
	if sender == nil {
		sender = NewLogEmailSender(logger)
	}

	s := &NotificationService{
		renderer: renderer,
		sender:   sender,
		students: students,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// LessonBooked announces a newly booked single lesson to the student.
func (s *NotificationService) LessonBooked(lesson *models.Lesson, student *models.Student) {
	if lesson == nil || student == nil {
		return
	}
	s.enqueue(models.Notification{
		Type:           models.NotificationLessonBooked,
		RecipientEmail: student.Email,
		RecipientName:  student.FullName,
		Variables: map[string]string{
			"student_name": student.FullName,
			"lesson_date":  lesson.StartAt.UTC().Format(time.RFC1123),
			"duration":     fmt.Sprintf("%d", lesson.DurationMinutes),
		},
	})
}

// RecurringBooked announces a new weekly slot and its first lesson.
func (s *NotificationService) RecurringBooked(slot *models.RecurringSlot, first *models.Lesson, student *models.Student) {
	if slot == nil || first == nil || student == nil {
		return
	}
	s.enqueue(models.Notification{
		Type:           models.NotificationRecurringBooked,
		RecipientEmail: student.Email,
		RecipientName:  student.FullName,
		Variables: map[string]string{
			"student_name": student.FullName,
			"weekday":      time.Weekday(slot.DayOfWeek).String(),
			"local_time":   fmt.Sprintf("%02d:%02d", slot.StartMinute/60, slot.StartMinute%60),
			"timezone":     slot.Timezone,
			"first_lesson": first.StartAt.UTC().Format(time.RFC1123),
			"duration":     fmt.Sprintf("%d", slot.DurationMinutes),
		},
	})
}

// LessonCancelled announces a cancellation. The recipient is resolved from
// the lesson's student inside the worker, so a lookup failure only costs the
// notification.
func (s *NotificationService) LessonCancelled(lesson *models.Lesson) {
	if lesson == nil {
		return
	}
	s.enqueue(models.Notification{
		Type: models.NotificationLessonCancelled,
		Variables: map[string]string{
			"student_id":  lesson.StudentID,
			"lesson_date": lesson.StartAt.UTC().Format(time.RFC1123),
			"duration":    fmt.Sprintf("%d", lesson.DurationMinutes),
		},
	})
}

// InvoiceGenerated announces a fresh invoice to the payer.
func (s *NotificationService) InvoiceGenerated(invoice *models.Invoice, student *models.Student) {
	if invoice == nil {
		return
	}
	n := models.Notification{
		Type: models.NotificationInvoiceGenerated,
		Variables: map[string]string{
			"invoice_number": invoice.Number,
			"month":          invoice.Month,
			"total":          formatMinorUnits(invoice.Total),
			"due_date":       invoice.DueDate.UTC().Format("2006-01-02"),
		},
	}
	switch {
	case student != nil:
		n.RecipientEmail = student.Email
		n.RecipientName = student.FullName
		n.Variables["student_name"] = student.FullName
	case invoice.PayerEmail != nil:
		n.RecipientEmail = *invoice.PayerEmail
		if invoice.PayerName != nil {
			n.RecipientName = *invoice.PayerName
			n.Variables["student_name"] = *invoice.PayerName
		}
	default:
		s.logger.Debug("invoice has no reachable payer, skipping notification",
			zap.String("invoice_id", invoice.ID))
		return
	}
	s.enqueue(n)
}

func (s *NotificationService) enqueue(n models.Notification) {
	if s == nil || s.queue == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(n.Type),
		Payload: n,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("type", string(n.Type)),
			zap.Error(err))
	}
}

// deliver runs on a queue worker: resolve the recipient if needed, render,
// send. Any returned error goes through the queue's retry policy and is
// ultimately only logged.
func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	if n.RecipientEmail == "" {
		studentID := n.Variables["student_id"]
		if studentID == "" || s.students == nil {
			return fmt.Errorf("notification %s has no recipient", n.Type)
		}
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			return fmt.Errorf("resolve recipient: %w", err)
		}
		n.RecipientEmail = student.Email
		n.RecipientName = student.FullName
		n.Variables["student_name"] = student.FullName
	}

	msg, err := s.renderer.Render(n.Type, n.Variables)
	if err != nil {
		return fmt.Errorf("render %s: %w", n.Type, err)
	}
	if err := s.sender.Send(ctx, n.RecipientEmail, msg); err != nil {
		return fmt.Errorf("send %s: %w", n.Type, err)
	}

	s.logger.Debug("notification delivered",
		zap.String("type", string(n.Type)),
		zap.String("recipient", n.RecipientEmail))
	return nil
}

func formatMinorUnits(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

var notificationTemplates = map[models.NotificationType]struct {
	subject string
	body    string
}{
	models.NotificationLessonBooked: {
		subject: "Your lesson is booked",
		body: `<p>Hi {{.student_name}},</p>
<p>Your {{.duration}}-minute lesson is confirmed for {{.lesson_date}}.</p>`,
	},
	models.NotificationRecurringBooked: {
		subject: "Your weekly lesson is set up",
		body: `<p>Hi {{.student_name}},</p>
<p>Your weekly {{.duration}}-minute lesson is set for every {{.weekday}} at {{.local_time}} ({{.timezone}}).</p>
<p>The first lesson is on {{.first_lesson}}.</p>`,
	},
	models.NotificationLessonCancelled: {
		subject: "Your lesson was cancelled",
		body: `<p>Hi {{.student_name}},</p>
<p>Your {{.duration}}-minute lesson on {{.lesson_date}} has been cancelled.</p>`,
	},
	models.NotificationInvoiceGenerated: {
		subject: "Invoice {{.invoice_number}}",
		body: `<p>Hi {{.student_name}},</p>
<p>Invoice {{.invoice_number}} for {{.month}} is ready: {{.total}} due by {{.due_date}}.</p>`,
	},
}

// StudioTemplateRenderer renders the built-in email templates.
type StudioTemplateRenderer struct {
	templates map[models.NotificationType]*template.Template
	subjects  map[models.NotificationType]*template.Template
}

// NewStudioTemplateRenderer parses the built-in templates.
func NewStudioTemplateRenderer() *StudioTemplateRenderer {
	r := &StudioTemplateRenderer{
		templates: make(map[models.NotificationType]*template.Template),
		subjects:  make(map[models.NotificationType]*template.Template),
	}
	for t, def := range notificationTemplates {
		r.subjects[t] = template.Must(template.New(string(t) + ":subject").Parse(def.subject))
		r.templates[t] = template.Must(template.New(string(t)).Parse(def.body))
	}
	return r
}

// Render implements TemplateRenderer.
func (r *StudioTemplateRenderer) Render(t models.NotificationType, vars map[string]string) (*models.EmailMessage, error) {
	subjectTmpl, ok := r.subjects[t]
	if !ok {
		return nil, fmt.Errorf("no template for notification type %q", t)
	}

	var subject, body bytes.Buffer
	if err := subjectTmpl.Execute(&subject, vars); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	if err := r.templates[t].Execute(&body, vars); err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}
	return &models.EmailMessage{Subject: subject.String(), HTML: body.String()}, nil
}

// LogEmailSender records outbound mail in the log instead of delivering it.
type LogEmailSender struct {
	logger *zap.Logger
}

// NewLogEmailSender constructs a LogEmailSender.
func NewLogEmailSender(logger *zap.Logger) *LogEmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmailSender{logger: logger}
}

// Send implements EmailSender.
func (s *LogEmailSender) Send(_ context.Context, to string, msg *models.EmailMessage) error {
	s.logger.Info("email sent",
		zap.String("to", to),
		zap.String("subject", msg.Subject))
	return nil
}
