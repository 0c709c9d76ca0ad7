package models

import "time"

// LessonStatus enumerates the lesson lifecycle states.
type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "SCHEDULED"
	LessonStatusCompleted LessonStatus = "COMPLETED"
	LessonStatusCancelled LessonStatus = "CANCELLED"
)

// Lesson is one concrete teaching session at a specific UTC instant. Price is
// snapshotted in minor units at booking time and never changes retroactively
// when the teacher's settings change.
type Lesson struct {
	ID              string       `db:"id" json:"id"`
	TeacherID       string       `db:"teacher_id" json:"teacher_id"`
	StudentID       string       `db:"student_id" json:"student_id"`
	RecurringSlotID *string      `db:"recurring_slot_id" json:"recurring_slot_id,omitempty"`
	StartAt         time.Time    `db:"start_at" json:"start_at"`
	DurationMinutes int          `db:"duration_minutes" json:"duration_minutes"`
	Status          LessonStatus `db:"status" json:"status"`
	Recurring       bool         `db:"recurring" json:"recurring"`
	Price           int64        `db:"price" json:"price"`
	Notes           *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// EndAt returns the exclusive end of the lesson's [start, start+duration) range.
func (l Lesson) EndAt() time.Time {
	return l.StartAt.Add(time.Duration(l.DurationMinutes) * time.Minute)
}

// LessonFilter captures filtering criteria for listing lessons.
type LessonFilter struct {
	TeacherID string
	StudentID string
	SlotID    string
	Status    LessonStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
