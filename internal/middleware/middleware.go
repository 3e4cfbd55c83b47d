package middleware

import (
	"context"
	"net/http"
	"time"

	"tessera/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	ginUserIDKey    = "user_id"
	ginRequestIDKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)

func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return logger.ContextWithUserID(ctx, userID)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	return logger.UserIDFromContext(ctx)
}

// UserID returns the authenticated user of the request, if any.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ginUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func setUser(c *gin.Context, userID int64) {
	c.Set(ginUserIDKey, userID)
	c.Request = c.Request.WithContext(ContextWithUserID(c.Request.Context(), userID))
}

// RequestID принимает X-Request-ID клиента или генерирует новый
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = logger.NewRequestID()
		}
		c.Set(ginRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Timeout ограничивает время обработки запроса через context
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CORS middleware для обработки CORS запросов
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Logger middleware для структурированного логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		logFields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status_code", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			logFields = append(logFields, "error", c.Errors.String())
		}

		// request_id и user_id добавляет WithContext
		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Request completed with error", logFields...)
		case status >= http.StatusBadRequest:
			log.Warn("Request rejected", logFields...)
		default:
			log.Info("Request completed", logFields...)
		}
	}
}

// Recovery middleware для восстановления после паники с детальным логированием
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithContext(c.Request.Context()).Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
		)

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
				"kind":  "INTERNAL",
			})
		}
	})
}
