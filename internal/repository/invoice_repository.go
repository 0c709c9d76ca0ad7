package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muselane/studio-api/internal/models"
)

// InvoiceRepository manages persistence for invoices and their line items.
// Invoice numbers are allocated transactionally under a per-(teacher, year)
// advisory lock so concurrent generation never skips or repeats a sequence.
type InvoiceRepository struct {
	db           *sqlx.DB
	numberPrefix string
}

// NewInvoiceRepository constructs an InvoiceRepository. numberPrefix is the
// leading token of generated invoice numbers, e.g. INV-2026-001.
func NewInvoiceRepository(db *sqlx.DB, numberPrefix string) *InvoiceRepository {
	if numberPrefix == "" {
		numberPrefix = "INV"
	}
	return &InvoiceRepository{db: db, numberPrefix: numberPrefix}
}

const invoiceColumns = `id, teacher_id, student_id, payer_name, payer_email, number, year, sequence, month, due_date, subtotal, total, status, paid_at, payment_method, payment_notes, created_at, updated_at`

// Create persists an invoice with its items, assigning the next sequential
// number for the teacher's year inside the transaction.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now
	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invoice tx: %w", err)
	}
	defer tx.Rollback()

	// Serialize numbering per teacher and year.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), $2)`, invoice.TeacherID, invoice.Year); err != nil {
		return fmt.Errorf("acquire invoice number lock: %w", err)
	}

	var next int
	if err := sqlx.GetContext(ctx, tx, &next,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM invoices WHERE teacher_id = $1 AND year = $2`,
		invoice.TeacherID, invoice.Year); err != nil {
		return fmt.Errorf("next invoice sequence: %w", err)
	}
	invoice.Sequence = next
	invoice.Number = fmt.Sprintf("%s-%d-%03d", r.numberPrefix, invoice.Year, next)

	const insertInvoice = `INSERT INTO invoices (id, teacher_id, student_id, payer_name, payer_email, number, year, sequence, month, due_date, subtotal, total, status, paid_at, payment_method, payment_notes, created_at, updated_at)
		VALUES (:id, :teacher_id, :student_id, :payer_name, :payer_email, :number, :year, :sequence, :month, :due_date, :subtotal, :total, :status, :paid_at, :payment_method, :payment_notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertInvoice, invoice); err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	const insertItem = `INSERT INTO invoice_items (id, invoice_id, description, lesson_id, lesson_date, quantity, rate, amount)
		VALUES (:id, :invoice_id, :description, :lesson_id, :lesson_date, :quantity, :rate, :amount)`
	for i := range invoice.Items {
		item := &invoice.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.InvoiceID = invoice.ID
		if _, err := tx.NamedExecContext(ctx, insertItem, item); err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invoice tx: %w", err)
	}
	return nil
}

// ExistsForMonth reports whether any invoice, regardless of status, already
// covers the (teacher, student, month) triple.
func (r *InvoiceRepository) ExistsForMonth(ctx context.Context, teacherID, studentID, month string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM invoices WHERE teacher_id = $1 AND student_id = $2 AND month = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, studentID, month); err != nil {
		return false, fmt.Errorf("check invoice for month: %w", err)
	}
	return exists, nil
}

// List returns invoices matching filters along with total count.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	base := "FROM invoices WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Month != "" {
		conditions = append(conditions, fmt.Sprintf("month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]string{
		"created_at": "created_at",
		"due_date":   "due_date",
		"number":     "number",
		"status":     "status",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", invoiceColumns, base, column, order, size, offset)
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	return invoices, total, nil
}

// FindByID fetches an invoice by ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1", invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListItems fetches the line items of an invoice.
func (r *InvoiceRepository) ListItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	const query = `SELECT id, invoice_id, description, lesson_id, lesson_date, quantity, rate, amount
		FROM invoice_items WHERE invoice_id = $1 ORDER BY lesson_date NULLS LAST, id`
	var items []models.InvoiceItem
	if err := r.db.SelectContext(ctx, &items, query, invoiceID); err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	return items, nil
}

// UpdateStatus persists a status change together with the payment fields.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, invoice *models.Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()
	const query = `UPDATE invoices SET status = :status, paid_at = :paid_at, payment_method = :payment_method, payment_notes = :payment_notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return nil
}

// MarkOverdue flips unpaid invoices past their due date to OVERDUE and
// returns how many were affected.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	const query = `UPDATE invoices SET status = 'OVERDUE', updated_at = $2
		WHERE status IN ('PENDING', 'SENT', 'VIEWED') AND due_date < $1`
	result, err := r.db.ExecContext(ctx, query, asOf, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	return int(affected), nil
}
