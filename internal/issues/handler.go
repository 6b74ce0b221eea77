package issues

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quality-backend/internal/queue"
	"quality-backend/internal/shared/server/middleware"
	"quality-backend/internal/shared/server/respond"
	"quality-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the issues service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches issue routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/issues/:id", h.getIssue)
	rg.PATCH("/issues/:id", h.updateStatus)
	rg.POST("/issues/:id/resolve", h.requestResolution)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) getIssue(c *gin.Context) {
	issue, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch issue")
		return
	}
	respond.OK(c, issue)
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid JSON body", nil)
		return
	}
	ctx := telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	issue, err := h.Svc.UpdateStatus(ctx, c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err, "failed to update issue")
		return
	}
	c.Set(middleware.AnalysisIDKey, issue.AnalysisID)
	respond.OK(c, issue)
}

func (h *Handler) requestResolution(c *gin.Context) {
	ctx := telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	handle, err := h.Svc.RequestResolution(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to enqueue resolution")
		return
	}
	respond.Accepted(c, gin.H{
		"jobId": handle.JobID,
		"kind":  handle.Kind,
	})
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "issue not found", nil)
	case errors.Is(err, ErrInvalidStatus):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, err.Error(), gin.H{
			"allowed": []Status{StatusOpen, StatusFalsePositive, StatusAcceptedRisk, StatusResolved},
		})
	case errors.Is(err, queue.ErrJobQueueNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, respond.CodeQueueUnavailable, "job queue not configured", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, fallback, nil)
	}
}
