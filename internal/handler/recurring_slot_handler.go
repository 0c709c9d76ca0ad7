package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/muselane/studio-api/internal/models"
	"github.com/muselane/studio-api/internal/service"
	"github.com/muselane/studio-api/pkg/response"
)

// RecurringSlotHandler exposes recurring slot read and cancel endpoints.
// Slots are created through the booking endpoint, never directly.
type RecurringSlotHandler struct {
	service *service.RecurringService
}

// NewRecurringSlotHandler creates a new recurring slot handler.
func NewRecurringSlotHandler(svc *service.RecurringService) *RecurringSlotHandler {
	return &RecurringSlotHandler{service: svc}
}

// List godoc
// @Summary List recurring slots
// @Tags RecurringSlots
// @Produce json
// @Param teacherId query string false "Teacher ID filter"
// @Param studentId query string false "Student ID filter"
// @Param status query string false "Status filter (ACTIVE, CANCELLED)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /recurring-slots [get]
func (h *RecurringSlotHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	var filter models.RecurringSlotFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.TeacherID = c.Query("teacherId")
	filter.StudentID = c.Query("studentId")
	filter.Status = models.RecurringSlotStatus(c.Query("status"))

	slots, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// Get godoc
// @Summary Get recurring slot detail
// @Tags RecurringSlots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /recurring-slots/{id} [get]
func (h *RecurringSlotHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	slot, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Cancel godoc
// @Summary Cancel a recurring slot
// @Description Stops future lesson generation for the slot. Already scheduled lessons stay on the calendar and are cancelled individually.
// @Tags RecurringSlots
// @Param id path string true "Slot ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /recurring-slots/{id} [delete]
func (h *RecurringSlotHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.CancelSlot(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
