package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muselane/studio-api/internal/models"
	"github.com/muselane/studio-api/internal/service"
	appErrors "github.com/muselane/studio-api/pkg/errors"
	"github.com/muselane/studio-api/pkg/response"
)

type bookingService interface {
	BookLesson(ctx context.Context, claims *models.JWTClaims, req service.BookLessonRequest) (*models.BookingResult, error)
}

// BookingHandler exposes the booking endpoint.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// BookForStudent godoc
// @Summary Book a lesson for a student
// @Description Books a single lesson or starts a weekly recurring series. Single bookings return the lesson plus its invoice; recurring bookings return the slot, the first lesson, and the number of lessons created.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.BookLessonRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/book-for-student [post]
func (h *BookingHandler) BookForStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.BookLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	result, err := h.service.BookLesson(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
