package models

import "time"

// Teacher represents a music teacher's profile. The timezone is the IANA
// identifier all weekly availability for this teacher is expressed in.
type Teacher struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	Timezone   string    `db:"timezone" json:"timezone"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Instrument *string   `db:"instrument" json:"instrument,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering criteria for listing teachers.
type TeacherFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
