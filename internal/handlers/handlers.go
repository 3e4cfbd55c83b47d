package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	apperrors "tessera/internal/errors"
	"tessera/internal/logger"
	"tessera/internal/middleware"
	"tessera/internal/models"
	"tessera/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services       *service.Services
	directPurchase bool
}

type Option func(*Handlers)

// WithDirectPurchase enables POST /purchase, which sells held seats without a
// payment.
func WithDirectPurchase(enabled bool) Option {
	return func(h *Handlers) { h.directPurchase = enabled }
}

func NewHandlers(services *service.Services, opts ...Option) *Handlers {
	h := &Handlers{services: services}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var statusByKind = map[apperrors.Kind]int{
	apperrors.KindSeatNotFound:          http.StatusNotFound,
	apperrors.KindTicketNotFound:        http.StatusNotFound,
	apperrors.KindSeatUnavailable:       http.StatusConflict,
	apperrors.KindSeatNotHeld:           http.StatusConflict,
	apperrors.KindHoldExpiredOrNotOwned: http.StatusConflict,
	apperrors.KindPaymentAlreadyUsed:    http.StatusConflict,
	apperrors.KindPaymentNotConfirmed:   http.StatusPaymentRequired,
	apperrors.KindAmountMismatch:        http.StatusUnprocessableEntity,
	apperrors.KindInvalidRequest:        http.StatusBadRequest,
	apperrors.KindPaymentGateway:        http.StatusBadGateway,
	apperrors.KindStoreUnavailable:      http.StatusServiceUnavailable,
}

// handleServiceError переводит ошибку сервиса в HTTP ответ
func (h *Handlers) handleServiceError(c *gin.Context, err error, msg string) {
	log := logger.WithContext(c.Request.Context())
	_ = c.Error(err)

	if appErr, ok := apperrors.As(err); ok {
		status, known := statusByKind[appErr.Kind]
		if !known {
			status = http.StatusInternalServerError
		}
		body := gin.H{
			"error": appErr.Message,
			"kind":  appErr.Kind,
		}
		if len(appErr.Seats) > 0 {
			body["seats"] = appErr.SeatLabels()
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		if status >= http.StatusInternalServerError {
			log.Error(msg, "error", err)
		}
		c.JSON(status, body)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn(msg, "error", err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out", "kind": apperrors.KindStoreUnavailable})
		return
	}

	log.Error(msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "kind": apperrors.KindInternal})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": apperrors.KindInvalidRequest})
}

// eventID читает :event_id из пути
func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "event_id must be a positive integer")
		return 0, false
	}
	return id, true
}

// currentUser returns the authenticated user; routes behind JWTAuth always have one.
func currentUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": apperrors.ErrUnauthorized.Error(), "kind": "UNAUTHORIZED"})
		return 0, false
	}
	return userID, true
}

// seatSelection validates seat refs into keys of the event.
func seatSelection(c *gin.Context, event int64, refs []models.SeatRef) ([]models.SeatKey, bool) {
	keys, err := models.NormalizeSeats(event, refs)
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	return keys, true
}
