package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muselane/studio-api/internal/models"
	"github.com/muselane/studio-api/internal/service"
	appErrors "github.com/muselane/studio-api/pkg/errors"
)

type invoiceServiceMock struct {
	invoices   []models.Invoice
	invoice    *models.Invoice
	err        error
	lastFilter models.InvoiceFilter
	lastReq    service.UpdateInvoiceStatusRequest
}

func (m *invoiceServiceMock) List(ctx context.Context, claims *models.JWTClaims, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	m.lastFilter = filter
	return m.invoices, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(m.invoices)}, m.err
}

func (m *invoiceServiceMock) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Invoice, error) {
	return m.invoice, m.err
}

func (m *invoiceServiceMock) UpdateStatus(ctx context.Context, claims *models.JWTClaims, id string, req service.UpdateInvoiceStatusRequest) (*models.Invoice, error) {
	m.lastReq = req
	return m.invoice, m.err
}

func TestInvoiceHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &invoiceServiceMock{invoices: []models.Invoice{{ID: "i1"}}}
	handler := &InvoiceHandler{service: mockSvc}

	w := httptest.NewRecorder()
	c, _ := teacherContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/invoices?teacherId=t1&month=2026-02&status=PENDING", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", mockSvc.lastFilter.TeacherID)
	assert.Equal(t, "2026-02", mockSvc.lastFilter.Month)
	assert.Equal(t, models.InvoiceStatusPending, mockSvc.lastFilter.Status)
}

func TestInvoiceHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &invoiceServiceMock{
		invoice: &models.Invoice{ID: "i1", Status: models.InvoiceStatusSent},
	}
	handler := &InvoiceHandler{service: mockSvc}

	payload, _ := json.Marshal(service.UpdateInvoiceStatusRequest{Status: models.InvoiceStatusSent})
	w := httptest.NewRecorder()
	c, _ := teacherContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/invoices/i1/status", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "i1"}}

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.InvoiceStatusSent, mockSvc.lastReq.Status)
}

func TestInvoiceHandlerUpdateStatusBackward(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &invoiceServiceMock{
		err: appErrors.Clone(appErrors.ErrValidation, "invoice status cannot move backwards"),
	}
	handler := &InvoiceHandler{service: mockSvc}

	payload, _ := json.Marshal(service.UpdateInvoiceStatusRequest{Status: models.InvoiceStatusPending})
	w := httptest.NewRecorder()
	c, _ := teacherContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/invoices/i1/status", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "i1"}}

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceHandlerUpdateStatusInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &InvoiceHandler{service: &invoiceServiceMock{}}

	w := httptest.NewRecorder()
	c, _ := teacherContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/invoices/i1/status", bytes.NewBufferString(`{"status":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "i1"}}

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
