package handlers

import (
	"net/http"
	"time"

	apperrors "tessera/internal/errors"
	"tessera/internal/logger"
	"tessera/internal/middleware"
	"tessera/internal/models"

	"github.com/gin-gonic/gin"
)

// ListSeats - GET /api/events/:event_id/seats
// Карта мест события с отображаемым статусом и ценой
func (h *Handlers) ListSeats(c *gin.Context) {
	event, ok := eventID(c)
	if !ok {
		return
	}
	viewer, _ := middleware.UserID(c)

	seats, err := h.services.Seats.List(c.Request.Context(), event, viewer)
	if err != nil {
		h.handleServiceError(c, err, "Failed to list seats")
		return
	}

	c.JSON(http.StatusOK, seats)
}

// ReserveSeats - POST /api/events/:event_id/seats/reserve
// Удержать все места или ни одного
func (h *Handlers) ReserveSeats(c *gin.Context) {
	event, ok := eventID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.HoldSeconds < 0 {
		badRequest(c, "hold_seconds must not be negative")
		return
	}
	keys, ok := seatSelection(c, event, req.Seats)
	if !ok {
		return
	}

	hold, err := h.services.Reservations.Reserve(c.Request.Context(), event, userID, keys, time.Duration(req.HoldSeconds)*time.Second)
	if err != nil {
		h.handleServiceError(c, err, "Failed to reserve seats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id":   hold.EventID,
		"seats":      models.SeatLabels(hold.Seats),
		"expires_at": hold.ExpiresAt,
	})
}

// ReleaseSeats - POST /api/events/:event_id/seats/release
// Снять свои удержания; чужие и проданные места пропускаются
func (h *Handlers) ReleaseSeats(c *gin.Context) {
	event, ok := eventID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.SeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	keys, ok := seatSelection(c, event, req.Seats)
	if !ok {
		return
	}

	released, err := h.services.Reservations.Release(c.Request.Context(), event, userID, keys)
	if err != nil {
		// Часть мест освобождена: отвечаем 200 и перечисляем остальные
		if appErr, ok := apperrors.As(err); ok && released > 0 && len(appErr.Seats) > 0 {
			logger.WithContext(c.Request.Context()).Warn("Seats partially released",
				"event_id", event,
				"released", released,
				"failed", appErr.SeatLabels(),
				"error", err)
			c.JSON(http.StatusOK, models.ReleaseResponse{Released: released, Failed: appErr.SeatLabels()})
			return
		}
		h.handleServiceError(c, err, "Failed to release seats")
		return
	}

	c.JSON(http.StatusOK, models.ReleaseResponse{Released: released})
}

// PriceSeats - POST /api/events/:event_id/price
// Посчитать сумму по текущим ценам
func (h *Handlers) PriceSeats(c *gin.Context) {
	event, ok := eventID(c)
	if !ok {
		return
	}

	var req models.PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	keys, ok := seatSelection(c, event, req.Seats)
	if !ok {
		return
	}

	quote, err := h.services.Pricing.Price(c.Request.Context(), event, keys, req.Phase)
	if err != nil {
		h.handleServiceError(c, err, "Failed to price seats")
		return
	}

	c.JSON(http.StatusOK, quote)
}
