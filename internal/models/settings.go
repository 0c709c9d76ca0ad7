package models

import "time"

// LessonSettings holds a teacher's per-duration lesson pricing in minor
// currency units (cents). Absence blocks booking for that teacher.
type LessonSettings struct {
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	Price30Min int64     `db:"price_30_min" json:"price_30_min"`
	Price60Min int64     `db:"price_60_min" json:"price_60_min"`
	Currency   string    `db:"currency" json:"currency"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PriceForDuration resolves the per-lesson rate for a duration. The 30 and 60
// minute tiers map directly; anything else is priced pro-rata from the
// 60-minute rate.
func (s LessonSettings) PriceForDuration(minutes int) int64 {
	switch minutes {
	case 30:
		return s.Price30Min
	case 60:
		return s.Price60Min
	default:
		return s.Price60Min * int64(minutes) / 60
	}
}
