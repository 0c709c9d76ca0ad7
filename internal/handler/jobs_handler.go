package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muselane/studio-api/internal/models"
	"github.com/muselane/studio-api/internal/service"
	appErrors "github.com/muselane/studio-api/pkg/errors"
	"github.com/muselane/studio-api/pkg/response"
)

type jobRunner interface {
	GenerateMonthlyInvoices(ctx context.Context, month string) (*models.InvoiceGenerationSummary, error)
	GenerateUpcomingLessons(ctx context.Context, weeks int) (*models.LessonGenerationSummary, error)
}

// JobsHandler exposes admin triggers for the background batch jobs. The same
// code paths run on the cron schedule; the endpoints exist for reruns and
// catch-up after downtime.
type JobsHandler struct {
	runner jobRunner
}

// NewJobsHandler constructs the handler.
func NewJobsHandler(svc *service.RecurringService) *JobsHandler {
	return &JobsHandler{runner: svc}
}

// GenerateInvoices godoc
// @Summary Generate monthly invoices
// @Description Creates one invoice per active recurring slot for the given month. Safe to rerun, pairs already invoiced for the month are skipped.
// @Tags Admin
// @Produce json
// @Param month query string false "Billing month (YYYY-MM). Defaults to the current month"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/background-jobs/generate-invoices [post]
func (h *JobsHandler) GenerateInvoices(c *gin.Context) {
	month := strings.TrimSpace(c.Query("month"))
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	summary, err := h.runner.GenerateMonthlyInvoices(c.Request.Context(), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// GenerateLessons godoc
// @Summary Generate upcoming lessons
// @Description Extends every active recurring slot's lessons out to the requested horizon.
// @Tags Admin
// @Produce json
// @Param weeks query int false "Horizon in weeks. Defaults to 8"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/background-jobs/generate-lessons [post]
func (h *JobsHandler) GenerateLessons(c *gin.Context) {
	weeks := 0
	if raw := strings.TrimSpace(c.Query("weeks")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weeks must be a positive integer"))
			return
		}
		weeks = parsed
	}
	summary, err := h.runner.GenerateUpcomingLessons(c.Request.Context(), weeks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
