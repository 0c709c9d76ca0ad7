package models

import "time"

// RecurringSlotStatus enumerates recurring slot lifecycle states.
type RecurringSlotStatus string

const (
	RecurringSlotStatusActive    RecurringSlotStatus = "ACTIVE"
	RecurringSlotStatusCancelled RecurringSlotStatus = "CANCELLED"
)

// RecurringSlot is a standing weekly agreement between a teacher and student
// that generates individual lesson occurrences. The local wall-clock position
// (day, minute, timezone) is the source of truth for each occurrence, so the
// series keeps its local time across DST changes. Cancelling a slot stops
// future generation but never touches lessons already created.
type RecurringSlot struct {
	ID              string              `db:"id" json:"id"`
	TeacherID       string              `db:"teacher_id" json:"teacher_id"`
	StudentID       string              `db:"student_id" json:"student_id"`
	DayOfWeek       int                 `db:"day_of_week" json:"day_of_week"`
	StartMinute     int                 `db:"start_minute" json:"start_minute"`
	DurationMinutes int                 `db:"duration_minutes" json:"duration_minutes"`
	Price           int64               `db:"price" json:"price"`
	Timezone        string              `db:"timezone" json:"timezone"`
	Status          RecurringSlotStatus `db:"status" json:"status"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// RecurringSlotFilter captures filtering criteria for listing slots.
type RecurringSlotFilter struct {
	TeacherID string
	StudentID string
	Status    RecurringSlotStatus
	Page      int
	PageSize  int
}
