package handlers

import (
	"net/http"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"

	"github.com/gin-gonic/gin"
)

// Purchase - POST /api/events/:event_id/purchase
// Продажа удержанных мест без оплаты (если включено)
func (h *Handlers) Purchase(c *gin.Context) {
	if !h.directPurchase {
		c.JSON(http.StatusForbidden, gin.H{"error": apperrors.ErrForbidden.Error(), "kind": "FORBIDDEN"})
		return
	}
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

	purchase, err := h.services.Fulfillment.PurchaseDirect(c.Request.Context(), event, userID, keys)
	if err != nil {
		h.handleServiceError(c, err, "Failed to purchase seats")
		return
	}

	c.JSON(http.StatusCreated, purchase)
}

// CreatePaymentIntent - POST /api/events/:event_id/payments/intent
// Создать платёж на сумму текущего удержания
func (h *Handlers) CreatePaymentIntent(c *gin.Context) {
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

	intent, err := h.services.Fulfillment.CreatePaymentIntent(c.Request.Context(), event, userID, keys)
	if err != nil {
		h.handleServiceError(c, err, "Failed to create payment")
		return
	}

	c.JSON(http.StatusCreated, intent)
}

// CompletePayment - POST /api/events/:event_id/payments/complete
// Выдать билеты по подтверждённому платежу
func (h *Handlers) CompletePayment(c *gin.Context) {
	event, ok := eventID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CompletePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	keys, ok := seatSelection(c, event, req.Seats)
	if !ok {
		return
	}

	purchase, err := h.services.Fulfillment.PurchaseWithPayment(c.Request.Context(), event, userID, keys, req.PaymentRef)
	if err != nil {
		h.handleServiceError(c, err, "Failed to complete payment")
		return
	}

	c.JSON(http.StatusCreated, purchase)
}
