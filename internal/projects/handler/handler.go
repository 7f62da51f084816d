package handler

import (
	"net/http"

	"agency_portal_backend/internal/projects/service"
	"agency_portal_backend/internal/projects/transport"
	"agency_portal_backend/platform/httpkit"
	"agency_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GET /api/projects/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	project, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, project)
}

// PATCH /api/projects/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateProjectStatusRequest
	if !httpkit.BindJSON(c, h.val, &req) {
		return
	}

	project, err := h.svc.SetStatus(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, project)
}

// PATCH /api/projects/:id/checklist
func (h *Handler) UpdateChecklist(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateChecklistRequest
	if !httpkit.BindJSON(c, h.val, &req) {
		return
	}

	project, err := h.svc.UpdateChecklist(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, project)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid project id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}
