package projects

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quality-backend/internal/shared/server/middleware"
	"quality-backend/internal/shared/server/respond"
	"quality-backend/internal/shared/telemetry"
)

// Handler serves project settings.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/projects/:projectId/settings", h.getSettings)
	rg.PUT("/projects/:projectId/settings", h.putSettings)
}

func (h *Handler) getSettings(c *gin.Context) {
	projectID := c.Param("projectId")
	c.Set(middleware.ProjectIDKey, projectID)
	s, err := h.Svc.Settings(c.Request.Context(), projectID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to fetch project settings", nil)
		return
	}
	respond.OK(c, s)
}

func (h *Handler) putSettings(c *gin.Context) {
	projectID := c.Param("projectId")
	c.Set(middleware.ProjectIDKey, projectID)

	var req Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid JSON body", nil)
		return
	}
	ctx := telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	s, err := h.Svc.Update(ctx, projectID, req)
	if err != nil {
		var ferr *FieldError
		if errors.As(err, &ferr) {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, ferr.Error(), []FieldError{*ferr})
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to save project settings", nil)
		return
	}
	respond.OK(c, s)
}
