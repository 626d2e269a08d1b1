package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/middleware"
)

func serve(e *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(method, path, nil))

	return w
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RequestIDMiddleware())
	e.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(e, http.MethodGet, "/ping")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc")

	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(middleware.RequestIDHeader))
}

func TestRateLimitGlobalWithExempt(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{
		Enabled: true,
		RPS:     0.001,
		Burst:   1,
		Key:     "global",
		Exempt:  []string{"/api/v1/health/"},
	}))
	e.GET("/api/v1/papers", func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/api/v1/health/db", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/v1/papers").Code)

	w := serve(e, http.MethodGet, "/api/v1/papers")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	for range 3 {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/v1/health/db").Code)
	}
}

func TestRateLimitPerHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{
		Enabled: true,
		RPS:     0.001,
		Burst:   1,
		Key:     "header:X-Client",
	}))
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Client", client)

		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)

		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusOK, call("b"))
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{Enabled: false, RPS: 0.001, Burst: 1}))
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 5 {
		require.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x").Code)
	}
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	calls := 0

	e := gin.New()
	e.Use(middleware.CircuitBreakerMiddleware(configs.CircuitBreakerConfig{
		Enabled:        true,
		FailureRate:    0.5,
		MinRequests:    2,
		Interval:       time.Minute,
		OpenTimeout:    time.Minute,
		HalfOpenProbes: 1,
	}))
	e.GET("/fail", func(c *gin.Context) {
		calls++
		c.Status(http.StatusInternalServerError)
	})

	assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/fail").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/fail").Code)

	w := serve(e, http.MethodGet, "/fail")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "UNAVAILABLE")
	assert.Equal(t, 2, calls)
}
