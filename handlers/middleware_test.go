package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lexrag-backend/auth"
	"github.com/lexrag-backend/config"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub string, roles []string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		Sub:   sub,
		Exp:   exp.Unix(),
		Roles: roles,
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{AuthMiddleware(auth.NewJWTValidator(testSecret))}, extra...)
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	r.GET("/protected", chain...)
	return r
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := authRouter()

	w := doGet(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired := signToken(t, "user-1", nil, time.Now().Add(-time.Hour))
	w = doGet(r, "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	valid := signToken(t, "user-1", nil, time.Now().Add(time.Hour))
	w = doGet(r, "Bearer "+valid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestAdminMiddleware(t *testing.T) {
	r := authRouter(AdminMiddleware())

	plain := signToken(t, "user-1", []string{"analyst"}, time.Now().Add(time.Hour))
	w := doGet(r, "Bearer "+plain)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := signToken(t, "user-2", []string{"admin"}, time.Now().Add(time.Hour))
	w = doGet(r, "Bearer "+admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(&config.RateLimitConfig{MaxRequests: 3, WindowSec: 60})

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("u1:/v1/analyze"), "request %d should fit", i+1)
	}
	assert.False(t, limiter.Allow("u1:/v1/analyze"))

	// Other keys have their own window.
	assert.True(t, limiter.Allow("u2:/v1/analyze"))
	assert.True(t, limiter.Allow("u1:/v1/index"))
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewRateLimiter(&config.RateLimitConfig{MaxRequests: 2, WindowSec: 60})
	limiter.window = 50 * time.Millisecond

	assert.True(t, limiter.Allow("u1:/v1/analyze"))
	assert.True(t, limiter.Allow("u1:/v1/analyze"))
	assert.False(t, limiter.Allow("u1:/v1/analyze"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, limiter.Allow("u1:/v1/analyze"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(&config.RateLimitConfig{MaxRequests: 1, WindowSec: 60})

	r := gin.New()
	r.POST("/v1/analyze", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}
