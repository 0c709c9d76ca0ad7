package models

// NotificationType selects the email template to render.
type NotificationType string

const (
	NotificationLessonBooked     NotificationType = "lesson_booked"
	NotificationRecurringBooked  NotificationType = "recurring_booked"
	NotificationLessonCancelled  NotificationType = "lesson_cancelled"
	NotificationInvoiceGenerated NotificationType = "invoice_generated"
)

// Notification is the payload handed to the post-commit notification queue.
// Delivery is best-effort; a failed notification never affects the booking
// or invoice it describes.
type Notification struct {
	Type           NotificationType  `json:"type"`
	RecipientEmail string            `json:"recipient_email"`
	RecipientName  string            `json:"recipient_name"`
	Variables      map[string]string `json:"variables"`
}

// EmailMessage is a rendered email ready for the sender collaborator.
type EmailMessage struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
