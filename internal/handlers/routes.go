package handlers

import "github.com/gin-gonic/gin"

// RouteMiddleware is the per-route middleware the API mounts.
type RouteMiddleware struct {
	Auth         gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	// RateLimit guards the mutating inventory routes.
	RateLimit gin.HandlerFunc
}

func passthrough(c *gin.Context) { c.Next() }

func orPass(fn gin.HandlerFunc) gin.HandlerFunc {
	if fn == nil {
		return passthrough
	}
	return fn
}

// Register mounts the inventory API on api (normally the /api group).
func (h *Handlers) Register(api *gin.RouterGroup, mw RouteMiddleware) {
	auth := orPass(mw.Auth)
	optional := orPass(mw.OptionalAuth)
	limit := orPass(mw.RateLimit)

	events := api.Group("/events/:event_id")
	{
		events.GET("/seats", optional, h.ListSeats)
		events.POST("/seats/reserve", auth, limit, h.ReserveSeats)
		events.POST("/seats/release", auth, limit, h.ReleaseSeats)
		events.POST("/price", optional, h.PriceSeats)
		events.POST("/purchase", auth, limit, h.Purchase)
		events.POST("/payments/intent", auth, limit, h.CreatePaymentIntent)
		events.POST("/payments/complete", auth, limit, h.CompletePayment)
	}

	tickets := api.Group("/tickets", auth)
	{
		tickets.GET("", h.ListTickets)
		tickets.GET("/search", h.SearchTickets)
	}
}
