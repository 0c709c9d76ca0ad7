package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muselane/studio-api/internal/middleware"
	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
)

type jobRunnerMock struct {
	invoiceSummary *models.InvoiceGenerationSummary
	lessonSummary  *models.LessonGenerationSummary
	invoiceErr     error
	lessonErr      error
	lastMonth      string
	lastWeeks      int
}

func (m *jobRunnerMock) GenerateMonthlyInvoices(ctx context.Context, month string) (*models.InvoiceGenerationSummary, error) {
	m.lastMonth = month
	return m.invoiceSummary, m.invoiceErr
}

func (m *jobRunnerMock) GenerateUpcomingLessons(ctx context.Context, weeks int) (*models.LessonGenerationSummary, error) {
	m.lastWeeks = weeks
	return m.lessonSummary, m.lessonErr
}

func adminContext(w *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	return c
}

func TestJobsHandlerGenerateInvoices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRunner := &jobRunnerMock{
		invoiceSummary: &models.InvoiceGenerationSummary{Month: "2026-02", InvoicesCreated: 3, Errors: []string{}},
	}
	handler := &JobsHandler{runner: mockRunner}

	w := httptest.NewRecorder()
	c := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/background-jobs/generate-invoices?month=2026-02", nil)
	c.Request = req

	handler.GenerateInvoices(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-02", mockRunner.lastMonth)

	var envelope struct {
		Data models.InvoiceGenerationSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 3, envelope.Data.InvoicesCreated)
}

func TestJobsHandlerGenerateInvoicesDefaultsToCurrentMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRunner := &jobRunnerMock{
		invoiceSummary: &models.InvoiceGenerationSummary{Errors: []string{}},
	}
	handler := &JobsHandler{runner: mockRunner}

	w := httptest.NewRecorder()
	c := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/background-jobs/generate-invoices", nil)
	c.Request = req

	handler.GenerateInvoices(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Now().UTC().Format("2006-01"), mockRunner.lastMonth)
}

func TestJobsHandlerGenerateInvoicesLocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRunner := &jobRunnerMock{
		invoiceErr: appErrors.Clone(appErrors.ErrConflict, "invoice generation is already running for this month"),
	}
	handler := &JobsHandler{runner: mockRunner}

	w := httptest.NewRecorder()
	c := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/background-jobs/generate-invoices?month=2026-02", nil)
	c.Request = req

	handler.GenerateInvoices(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestJobsHandlerGenerateLessons(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRunner := &jobRunnerMock{
		lessonSummary: &models.LessonGenerationSummary{LessonsCreated: 12, SlotsProcessed: 4, Errors: []string{}},
	}
	handler := &JobsHandler{runner: mockRunner}

	w := httptest.NewRecorder()
	c := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/background-jobs/generate-lessons?weeks=12", nil)
	c.Request = req

	handler.GenerateLessons(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12, mockRunner.lastWeeks)
}

func TestJobsHandlerGenerateLessonsRejectsBadWeeks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &JobsHandler{runner: &jobRunnerMock{}}

	w := httptest.NewRecorder()
	c := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/background-jobs/generate-lessons?weeks=zero", nil)
	c.Request = req

	handler.GenerateLessons(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
