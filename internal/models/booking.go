package models

// BookingType distinguishes one-off lessons from weekly recurring series.
type BookingType string

const (
	BookingTypeSingle    BookingType = "single"
	BookingTypeRecurring BookingType = "recurring"
)

// BookingResult is the outcome of a successful booking. Single bookings carry
// the lesson and, when immediate invoicing succeeded, its invoice. Recurring
// bookings carry the slot, the first occurrence, and the number of lessons
// materialized in the initial batch.
type BookingResult struct {
	Lesson         *Lesson        `json:"lesson,omitempty"`
	Invoice        *Invoice       `json:"invoice,omitempty"`
	RecurringSlot  *RecurringSlot `json:"recurring_slot,omitempty"`
	FirstLesson    *Lesson        `json:"first_lesson,omitempty"`
	LessonsCreated int            `json:"lessons_created,omitempty"`
}

// InvoiceGenerationSummary reports one monthly invoice batch run. Per-slot
// failures are collected here rather than aborting the batch.
type InvoiceGenerationSummary struct {
	Month           string   `json:"month"`
	InvoicesCreated int      `json:"invoices_created"`
	SlotsSkipped    int      `json:"slots_skipped"`
	Errors          []string `json:"errors"`
}

// LessonGenerationSummary reports one occurrence generation run.
type LessonGenerationSummary struct {
	LessonsCreated int      `json:"lessons_created"`
	SlotsProcessed int      `json:"slots_processed"`
	Errors         []string `json:"errors"`
}
