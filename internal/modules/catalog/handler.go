package catalog

import (
	"errors"
	"net/http"

	"builderhub/internal/middleware"
	"builderhub/internal/pkg/response"
	"builderhub/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/builders/:builderId/session-types", h.ListSessionTypes)
	rg.GET("/session-types/:id", h.GetSessionType)
}

// ListSessionTypes handles GET /api/v1/builders/:builderId/session-types
func (h *Handler) ListSessionTypes(c *gin.Context) {
	listing, err := h.service.ListForBuilder(c.Request.Context(), c.Param("builderId"), middleware.Viewer(c))
	if err != nil {
		if errors.Is(err, ErrValidation) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "builderId is required")
			return
		}
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load session types")
		return
	}
	response.Success(c, http.StatusOK, listing)
}

// GetSessionType handles GET /api/v1/session-types/:id
func (h *Handler) GetSessionType(c *gin.Context) {
	st, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Session type not found")
			return
		}
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load session type")
		return
	}
	if st.RequiresAuth && !middleware.Viewer(c).IsAuthenticated() {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Session type not found")
		return
	}
	response.Success(c, http.StatusOK, st)
}

// RegisterBuilderRoutes mounts catalog management; rg must already require
// the session type management permission.
func (h *Handler) RegisterBuilderRoutes(rg *gin.RouterGroup) {
	rg.PUT("/builders/:builderId/session-types/:id", h.SaveSessionType)
}

// SaveSessionType handles PUT /api/v1/builders/:builderId/session-types/:id
func (h *Handler) SaveSessionType(c *gin.Context) {
	var req SaveSessionTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid session type", validator.Fields(err))
		return
	}

	st := req.toDomain(c.Param("id"))
	err := h.service.Save(c.Request.Context(), middleware.Viewer(c), c.Param("builderId"), st)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, st)
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid session type")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: not your catalog")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save session type")
	}
}
