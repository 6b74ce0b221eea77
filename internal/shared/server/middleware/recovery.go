package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"quality-backend/internal/shared/server/respond"
	"quality-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 with the standard error body.
// The analysis a panicking request touched is logged so its state can be
// checked by hand; recovery never changes it.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("http.panic", map[string]any{
				"request_id":  RequestIDFromContext(c),
				"project_id":  c.GetString(ProjectIDKey),
				"analysis_id": c.GetString(AnalysisIDKey),
				"error":       fmt.Sprint(rec),
				"stack":       string(debug.Stack()),
				"path":        c.Request.URL.Path,
				"method":      c.Request.Method,
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "unexpected server error", nil)
		}()
		c.Next()
	}
}
