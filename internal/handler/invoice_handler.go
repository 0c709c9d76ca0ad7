package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/muselane/studio-api/internal/models"
	"github.com/muselane/studio-api/internal/service"
	appErrors "github.com/muselane/studio-api/pkg/errors"
	"github.com/muselane/studio-api/pkg/response"
)

type invoiceService interface {
	List(ctx context.Context, claims *models.JWTClaims, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Invoice, error)
	UpdateStatus(ctx context.Context, claims *models.JWTClaims, id string, req service.UpdateInvoiceStatusRequest) (*models.Invoice, error)
}

// InvoiceHandler exposes invoice read and lifecycle endpoints.
type InvoiceHandler struct {
	service invoiceService
}

// NewInvoiceHandler constructs the handler.
func NewInvoiceHandler(svc *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: svc}
}

// List godoc
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param teacherId query string false "Teacher ID filter"
// @Param studentId query string false "Student ID filter"
// @Param status query string false "Status filter (PENDING, SENT, VIEWED, PAID, OVERDUE, CANCELLED)"
// @Param month query string false "Billing month (YYYY-MM)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	var filter models.InvoiceFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.TeacherID = c.Query("teacherId")
	filter.StudentID = c.Query("studentId")
	filter.Status = models.InvoiceStatus(c.Query("status"))
	filter.Month = c.Query("month")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	invoices, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// Get godoc
// @Summary Get invoice detail
// @Description Returns the invoice with its line items.
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	invoice, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// UpdateStatus godoc
// @Summary Update invoice status
// @Description Moves the invoice forward through PENDING, SENT, VIEWED, PAID. CANCELLED is reachable from any non-PAID state. Marking PAID records payment metadata for bookkeeping only.
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body service.UpdateInvoiceStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /invoices/{id}/status [put]
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.UpdateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	invoice, err := h.service.UpdateStatus(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}
