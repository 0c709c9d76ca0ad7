package models

import "time"

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusViewed    InvoiceStatus = "VIEWED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice aggregates one or more lessons' charges for a month. Numbers are
// sequential per teacher per calendar year (INV-2026-001). The student is
// nullable so a custom payer can be named via the plain name/email fields.
// Amounts are minor currency units; total always mirrors subtotal because no
// tax or discount layer exists.
type Invoice struct {
	ID            string        `db:"id" json:"id"`
	TeacherID     string        `db:"teacher_id" json:"teacher_id"`
	StudentID     *string       `db:"student_id" json:"student_id,omitempty"`
	PayerName     *string       `db:"payer_name" json:"payer_name,omitempty"`
	PayerEmail    *string       `db:"payer_email" json:"payer_email,omitempty"`
	Number        string        `db:"number" json:"number"`
	Year          int           `db:"year" json:"year"`
	Sequence      int           `db:"sequence" json:"sequence"`
	Month         string        `db:"month" json:"month"`
	DueDate       time.Time     `db:"due_date" json:"due_date"`
	Subtotal      int64         `db:"subtotal" json:"subtotal"`
	Total         int64         `db:"total" json:"total"`
	Status        InvoiceStatus `db:"status" json:"status"`
	PaidAt        *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	PaymentMethod *string       `db:"payment_method" json:"payment_method,omitempty"`
	PaymentNotes  *string       `db:"payment_notes" json:"payment_notes,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`

	Items []InvoiceItem `db:"-" json:"items,omitempty"`
}

// InvoiceItem is one line on an invoice; amount is always quantity times rate.
type InvoiceItem struct {
	ID          string     `db:"id" json:"id"`
	InvoiceID   string     `db:"invoice_id" json:"invoice_id"`
	Description string     `db:"description" json:"description"`
	LessonID    *string    `db:"lesson_id" json:"lesson_id,omitempty"`
	LessonDate  *time.Time `db:"lesson_date" json:"lesson_date,omitempty"`
	Quantity    int        `db:"quantity" json:"quantity"`
	Rate        int64      `db:"rate" json:"rate"`
	Amount      int64      `db:"amount" json:"amount"`
}

// InvoiceFilter captures filtering criteria for listing invoices.
type InvoiceFilter struct {
	TeacherID string
	StudentID string
	Status    InvoiceStatus
	Month     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// invoiceStatusRank orders the forward-only part of the lifecycle.
var invoiceStatusRank = map[InvoiceStatus]int{
	InvoiceStatusPending: 1,
	InvoiceStatusSent:    2,
	InvoiceStatusViewed:  3,
	InvoiceStatusPaid:    4,
}

// CanTransitionTo reports whether a manual status change is permitted.
// Forward moves through PENDING, SENT, VIEWED, PAID are allowed; OVERDUE is
// system-set and may move to PAID or CANCELLED; CANCELLED is reachable from
// any state except PAID. PAID and CANCELLED are terminal for manual changes.
func (i Invoice) CanTransitionTo(next InvoiceStatus) bool {
	if i.Status == next {
		return false
	}
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusCancelled:
		return false
	case InvoiceStatusOverdue:
		return next == InvoiceStatusPaid || next == InvoiceStatusCancelled
	}
	if next == InvoiceStatusCancelled {
		return true
	}
	current, ok := invoiceStatusRank[i.Status]
	target, targetOK := invoiceStatusRank[next]
	return ok && targetOK && target > current
}
