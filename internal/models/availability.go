package models

import "time"

// AvailabilityWindow is a teacher-local recurring weekly time range during
// which bookings are allowed. Times are stored as minutes after midnight in
// the teacher's timezone; day 0 is Sunday.
type AvailabilityWindow struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether a local minute-of-day falls inside the window.
// The interval is half-open: the start minute is bookable, the end minute
// is not.
func (w AvailabilityWindow) Contains(minute int) bool {
	return w.StartMinute <= minute && minute < w.EndMinute
}

// BlockedTime is an absolute UTC interval during which a teacher is
// unavailable regardless of weekly availability. The timezone records the
// zone the block was entered in, for display only.
type BlockedTime struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	Timezone  string    `db:"timezone" json:"timezone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeacherAvailability aggregates everything needed to render a teacher's
// bookable time: active weekly windows plus upcoming blocked periods.
type TeacherAvailability struct {
	TeacherID    string               `json:"teacher_id"`
	Timezone     string               `json:"timezone"`
	Windows      []AvailabilityWindow `json:"windows"`
	BlockedTimes []BlockedTime        `json:"blocked_times"`
}
