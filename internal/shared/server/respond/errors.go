package respond

import (
	"github.com/gin-gonic/gin"

	"quality-backend/internal/shared/telemetry"
)

// Error codes shared by every handler. Domain-specific codes stay with
// their handlers.
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodePayloadTooLarge  = "payload_too_large"
	CodeQueueUnavailable = "queue_unavailable"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal_error"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs and sends a standardized error response, aborting the chain.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	for key, field := range map[string]string{"projectId": "project_id", "analysisId": "analysis_id"} {
		if v := c.GetString(key); v != "" {
			fields[field] = v
		}
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
