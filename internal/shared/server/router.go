package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"quality-backend/internal/services/health"
	"quality-backend/internal/shared/config"
	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/server/middleware"
	"quality-backend/internal/shared/server/respond"
)

const serviceName = "quality-backend"

// Polling clients hit status and gate endpoints far more often than they
// submit, so reads get a larger bucket.
var defaultRateLimits = map[string]middleware.RateLimitRule{
	"DEFAULT": {Rate: 5, Burst: 20},
	"POLLING": {Rate: 20, Burst: 60},
}

// RouteRegistrar is implemented by every domain handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries the handlers mounted under /api/v1.
type RouterDeps struct {
	Config     config.Config
	Health     *health.Service
	Handlers   []RouteRegistrar
	RateLimits map[string]middleware.RateLimitRule
	Limiter    *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	rules := deps.RateLimits
	if rules == nil {
		rules = defaultRateLimits
	}

	r.Use(
		middleware.RequestID(),
		otelgin.Middleware(serviceName),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		report := deps.Health.Check(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	limited := api.Group("")
	limited.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        rules,
		DefaultGroup: "DEFAULT",
		GroupFor:     rateLimitGroup,
		Limiter:      deps.Limiter,
	}))
	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(limited)
		}
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		return "POLLING"
	}
	return "DEFAULT"
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
