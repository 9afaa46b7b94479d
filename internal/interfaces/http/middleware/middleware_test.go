package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type scriptedLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *scriptedLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func serve(engine *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery())
	engine.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(engine, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"1007"`)
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(engine, http.MethodGet, "/", http.Header{RequestIDHeader: {"req-1"}})
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = serve(engine, http.MethodGet, "/", http.Header{RequestIDHeader: {strings.Repeat("a", 200)}})
	assert.Len(t, w.Body.String(), 36)
}

func TestProjectScope(t *testing.T) {
	engine := gin.New()
	engine.GET("/projects/:pid", ProjectScope(), func(c *gin.Context) { c.String(http.StatusOK, GetProjectID(c)) })

	w := serve(engine, http.MethodGet, "/projects/p-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-1", w.Body.String())

	w = serve(engine, http.MethodGet, "/projects/"+strings.Repeat("x", maxProjectIDLen+1), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := &scriptedLimiter{}
	engine := gin.New()
	engine.POST("/projects/:pid/part-outlines",
		RateLimit(RateLimitConfig{Enabled: true, RequestsPerWindow: 2, Window: time.Minute}, limiter),
		func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := serve(engine, http.MethodPost, "/projects/p1/part-outlines", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	require.Len(t, limiter.keys, 1)
	assert.Equal(t, "ratelimit:gen:p1:POST:/projects/:pid/part-outlines", limiter.keys[0])

	limiter.allow = true
	w = serve(engine, http.MethodPost, "/projects/p1/part-outlines", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	limiter.allow, limiter.err = false, errors.New("redis down")
	w = serve(engine, http.MethodPost, "/projects/p1/part-outlines", nil)
	assert.Equal(t, http.StatusCreated, w.Code, "limiter failures fail open")
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := &scriptedLimiter{}
	engine := gin.New()
	engine.POST("/x", RateLimit(RateLimitConfig{}, limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, http.MethodPost, "/x", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, limiter.keys)
}
