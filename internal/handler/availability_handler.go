package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muselane/studio-api/internal/middleware"
	"github.com/muselane/studio-api/internal/models"
	"github.com/muselane/studio-api/internal/service"
	appErrors "github.com/muselane/studio-api/pkg/errors"
	"github.com/muselane/studio-api/pkg/response"
)

type availabilityService interface {
	GetTeacherAvailability(ctx context.Context, teacherID string, from, to time.Time) (*models.TeacherAvailability, bool, error)
	CreateWindow(ctx context.Context, claims *models.JWTClaims, teacherID string, req service.CreateWindowRequest) (*models.AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, claims *models.JWTClaims, teacherID, windowID string, req service.CreateWindowRequest) (*models.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, claims *models.JWTClaims, teacherID, windowID string) error
	CreateBlockedTime(ctx context.Context, claims *models.JWTClaims, teacherID string, req service.CreateBlockedTimeRequest) (*models.BlockedTime, error)
	DeleteBlockedTime(ctx context.Context, claims *models.JWTClaims, teacherID, blockedID string) error
}

// AvailabilityHandler manages a teacher's bookable hours.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Get godoc
// @Summary Get teacher availability
// @Description Returns the teacher's weekly windows plus blocked times in the requested range. Served from cache when fresh.
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param from query string false "Range start (YYYY-MM-DD). Defaults to today"
// @Param to query string false "Range end (YYYY-MM-DD). Defaults to four weeks out"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	teacherID := c.Param("id")

	var from, to time.Time
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date, expected YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date, expected YYYY-MM-DD"))
			return
		}
		to = parsed
	}

	start := time.Now()
	availability, cacheHit, err := h.service.GetTeacherAvailability(c.Request.Context(), teacherID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, availability, nil, meta)
}

// CreateWindow godoc
// @Summary Add a weekly availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.CreateWindowRequest true "Window payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /teachers/{id}/availability-windows [post]
func (h *AvailabilityHandler) CreateWindow(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.CreateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid window payload"))
		return
	}
	window, err := h.service.CreateWindow(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}

// UpdateWindow godoc
// @Summary Replace a weekly availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param windowId path string true "Window ID"
// @Param payload body service.CreateWindowRequest true "Window payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /teachers/{id}/availability-windows/{windowId} [put]
func (h *AvailabilityHandler) UpdateWindow(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.CreateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid window payload"))
		return
	}
	window, err := h.service.UpdateWindow(c.Request.Context(), claims, c.Param("id"), c.Param("windowId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// DeleteWindow godoc
// @Summary Remove a weekly availability window
// @Tags Availability
// @Param id path string true "Teacher ID"
// @Param windowId path string true "Window ID"
// @Success 204
// @Router /teachers/{id}/availability-windows/{windowId} [delete]
func (h *AvailabilityHandler) DeleteWindow(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.DeleteWindow(c.Request.Context(), claims, c.Param("id"), c.Param("windowId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateBlockedTime godoc
// @Summary Block a period of time
// @Description Marks a concrete period as unbookable, for vacations or appointments. Existing lessons are untouched.
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.CreateBlockedTimeRequest true "Blocked time payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /teachers/{id}/blocked-times [post]
func (h *AvailabilityHandler) CreateBlockedTime(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.CreateBlockedTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid blocked time payload"))
		return
	}
	blocked, err := h.service.CreateBlockedTime(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, blocked)
}

// DeleteBlockedTime godoc
// @Summary Remove a blocked time
// @Tags Availability
// @Param id path string true "Teacher ID"
// @Param blockedId path string true "Blocked time ID"
// @Success 204
// @Router /teachers/{id}/blocked-times/{blockedId} [delete]
func (h *AvailabilityHandler) DeleteBlockedTime(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.DeleteBlockedTime(c.Request.Context(), claims, c.Param("id"), c.Param("blockedId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
