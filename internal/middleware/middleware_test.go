package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tessera/internal/cache"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	if claims["exp"] == nil {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func whoAmI(c *gin.Context) {
	userID, ok := UserID(c)
	ctxID, _ := UserIDFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "authenticated": ok, "ctx_user_id": ctxID})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWTAuth(testSecret), whoAmI)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing bearer token"},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "missing bearer token"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "invalid token"},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7"}), http.StatusUnauthorized, "invalid token"},
		{"wrong alg", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "7"}), http.StatusUnauthorized, "invalid token"},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7", "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized, "invalid token"},
		{"non numeric sub", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}), http.StatusUnauthorized, "invalid token"},
		{"string sub", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7"}), http.StatusOK, `"user_id":7`},
		{"numeric sub", "bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": 42}), http.StatusOK, `"ctx_user_id":42`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/seats", OptionalAuth(testSecret), whoAmI)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/seats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)

	req := httptest.NewRequest(http.MethodGet, "/seats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "5"}))
	w = serve(r, req)
	assert.Contains(t, w.Body.String(), `"user_id":5`)

	req = httptest.NewRequest(http.MethodGet, "/seats", nil)
	req.Header.Set("Authorization", "Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestParseUserIDRequiresSecret(t *testing.T) {
	_, err := ParseUserID("x.y.z", "")
	assert.Error(t, err)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ginRequestIDKey)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	w = serve(r, req)
	assert.Equal(t, "client-id", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL")
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Second))
	r.GET("/", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), `"deadline":true`)
}

type stubLimiter struct {
	keys     []string
	decision cache.Decision
	err      error
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (cache.Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{decision: cache.Decision{Allowed: true, Remaining: 3, Limit: 4}}
	r := gin.New()
	r.POST("/api/events/:event_id/seats/reserve", JWTAuth(testSecret), RateLimit(limiter), whoAmI)

	req := httptest.NewRequest(http.MethodPost, "/api/events/1/seats/reserve", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7"}))
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"user:7:POST /api/events/:event_id/seats/reserve"}, limiter.keys)

	limiter.decision = cache.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond, Limit: 4}
	w = serve(r, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	limiter.err = errors.New("redis down")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code, "limiter failures fail open")
}

func TestRateLimitNilLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimit(nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}
