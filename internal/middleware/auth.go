package middleware

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	apperrors "tessera/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errInvalidSubject = errors.New("token subject is not a user id")

// JWTAuth требует Bearer токен HS256 и кладёт sub (id пользователя) в контекст
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="tessera"`)
			abortUnauthorized(c, "missing bearer token")
			return
		}

		userID, err := ParseUserID(raw, secret)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		setUser(c, userID)
		c.Next()
	}
}

// OptionalAuth аутентифицирует, если токен передан; без токена запрос идёт
// анонимно, с неверным токеном отклоняется
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		userID, err := ParseUserID(raw, secret)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		setUser(c, userID)
		c.Next()
	}
}

// ParseUserID validates an HS256 token and returns its numeric subject. The
// subject may be encoded as a JSON number or a decimal string.
func ParseUserID(raw, secret string) (int64, error) {
	if secret == "" {
		return 0, errors.New("jwt secret is not configured")
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidSubject
	}

	var userID int64
	switch sub := claims["sub"].(type) {
	case string:
		userID, err = strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, errInvalidSubject
		}
	case float64:
		if sub != math.Trunc(sub) {
			return 0, errInvalidSubject
		}
		userID = int64(sub)
	default:
		return 0, fmt.Errorf("%w: %T", errInvalidSubject, sub)
	}

	if userID <= 0 {
		return 0, errInvalidSubject
	}
	return userID, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"kind":  "UNAUTHORIZED",
	})
	_ = c.Error(apperrors.ErrUnauthorized)
}
