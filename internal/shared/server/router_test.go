package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-backend/internal/services/health"
	"quality-backend/internal/shared/server/middleware"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	rg.POST("/ping", func(c *gin.Context) { c.String(http.StatusAccepted, "queued") })
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:4000"
	r.ServeHTTP(w, req)
	return w
}

func TestHealthWithoutDatabase(t *testing.T) {
	r := NewRouter(RouterDeps{Health: health.NewService(nil, "memory")})

	w := serve(r, http.MethodGet, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"database":"memory","queue":"memory"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewRouter(RouterDeps{})

	w := serve(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "analysis_started_total"))
}

func TestHandlersMountedUnderAPIPrefix(t *testing.T) {
	r := NewRouter(RouterDeps{Handlers: []RouteRegistrar{pingRoutes{}}})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/ping").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/ping").Code)
}

func TestRateLimitSeparatesPollingFromWrites(t *testing.T) {
	r := NewRouter(RouterDeps{
		Handlers: []RouteRegistrar{pingRoutes{}},
		RateLimits: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 0.001, Burst: 1},
			"POLLING": {Rate: 0.001, Burst: 2},
		},
		Limiter: middleware.NewRateLimiter(nil),
	})

	assert.Equal(t, http.StatusAccepted, serve(r, http.MethodPost, "/api/v1/ping").Code)
	w := serve(r, http.MethodPost, "/api/v1/ping")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/ping").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/ping").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/api/v1/ping").Code)
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":8080", Addr(""))
	assert.Equal(t, ":9000", Addr("9000"))
	assert.Equal(t, ":9000", Addr(":9000"))
}
