package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"tessera/internal/cache"
	"tessera/internal/logger"

	"github.com/gin-gonic/gin"
)

// Limiter decides whether a request keyed by caller may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (cache.Decision, error)
}

// RateLimit ограничивает частоту запросов по пользователю (или IP для
// анонимных) и маршруту. Ошибки Redis не блокируют запрос.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := rateKey(c)
		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("Rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

		if !decision.Allowed {
			secs := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"kind":        "RATE_LIMITED",
				"retry_after": secs,
			})
			return
		}

		c.Next()
	}
}

func rateKey(c *gin.Context) string {
	route := c.Request.Method + " " + c.FullPath()
	if userID, ok := UserID(c); ok {
		return "user:" + strconv.FormatInt(userID, 10) + ":" + route
	}
	return "ip:" + c.ClientIP() + ":" + route
}
