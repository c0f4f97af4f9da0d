package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"selfiebooth/pkg/config"
	"selfiebooth/pkg/i18n"
)

func limitedRouter(t *testing.T, mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(i18n.Default(), zaptest.NewLogger(t).Sugar()), mw)
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func get(router http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPRateLimitMiddleware_Disabled_AllowsRequests(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false
	router := limitedRouter(t, NewHTTPRateLimitMiddleware(cfg))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(router, "/test", nil).Code)
	}
}

func TestHTTPRateLimitMiddleware_Enabled_RateLimited(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	router := limitedRouter(t, NewHTTPRateLimitMiddleware(cfg))

	assert.Equal(t, http.StatusOK, get(router, "/test", nil).Code)

	w := get(router, "/test", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	// another forwarded client has its own bucket
	assert.Equal(t, http.StatusOK, get(router, "/test", map[string]string{"X-Forwarded-For": "10.0.0.7, 172.16.0.1"}).Code)
}

func TestLoginRateLimitMiddleware(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.Login.AttemptsPerMinute = 6
	cfg.RateLimiting.Login.Burst = 2
	router := limitedRouter(t, NewLoginRateLimitMiddleware(cfg))

	assert.Equal(t, http.StatusOK, get(router, "/test", nil).Code)
	assert.Equal(t, http.StatusOK, get(router, "/test", nil).Code)
	w := get(router, "/test", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "192.0.2.1", clientIP(req))
}
