package qualitygate

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quality-backend/internal/shared/server/middleware"
	"quality-backend/internal/shared/server/respond"
	"quality-backend/internal/shared/telemetry"
)

// Handler serves project quality gate configuration.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches gate routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/projects/:projectId/quality-gate", h.getGate)
	rg.PUT("/projects/:projectId/quality-gate", h.putGate)
}

type putGateRequest struct {
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
}

func (h *Handler) getGate(c *gin.Context) {
	projectID := c.Param("projectId")
	c.Set(middleware.ProjectIDKey, projectID)
	gate, err := h.Svc.ForProject(c.Request.Context(), projectID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to fetch quality gate", nil)
		return
	}
	respond.OK(c, gate)
}

func (h *Handler) putGate(c *gin.Context) {
	projectID := c.Param("projectId")
	c.Set(middleware.ProjectIDKey, projectID)

	var req putGateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid JSON body", nil)
		return
	}
	if req.Conditions == nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "conditions is required", []FieldError{
			{Field: "conditions", Issue: "required"},
		})
		return
	}

	ctx := telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	gate, err := h.Svc.Update(ctx, projectID, req.Name, req.Conditions)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid quality gate", verr.Fields)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to save quality gate", nil)
		return
	}
	respond.OK(c, gate)
}
