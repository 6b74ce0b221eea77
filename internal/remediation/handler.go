package remediation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quality-backend/internal/issues"
	"quality-backend/internal/shared/server/respond"
)

// Handler exposes stored remediation suggestions.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches remediation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/issues/:id/remediation", h.getRemediation)
}

func (h *Handler) getRemediation(c *gin.Context) {
	rec, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		respond.OK(c, rec)
	case errors.Is(err, issues.ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "issue not found", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "no remediation for this issue yet", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to fetch remediation", nil)
	}
}
