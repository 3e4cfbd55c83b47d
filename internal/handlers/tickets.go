package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListTickets - GET /api/tickets
// Билеты текущего пользователя
func (h *Handlers) ListTickets(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	tickets, err := h.services.Tickets.ListOwned(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err, "Failed to list tickets")
		return
	}

	c.JSON(http.StatusOK, tickets)
}

// SearchTickets - GET /api/tickets/search?barcode=...|q=...&event_id=&limit=
func (h *Handlers) SearchTickets(c *gin.Context) {
	if barcode := c.Query("barcode"); barcode != "" {
		ticket, err := h.services.Tickets.Lookup(c.Request.Context(), barcode)
		if err != nil {
			h.handleServiceError(c, err, "Failed to look up ticket")
			return
		}
		c.JSON(http.StatusOK, ticket)
		return
	}

	var event int64
	if raw := c.Query("event_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "event_id must be a positive integer")
			return
		}
		event = id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	docs, err := h.services.Tickets.Search(c.Request.Context(), c.Query("q"), event, limit)
	if err != nil {
		h.handleServiceError(c, err, "Failed to search tickets")
		return
	}

	c.JSON(http.StatusOK, docs)
}
