package handler

import (
	"net/http"

	"agency_portal_backend/internal/proposals/service"
	"agency_portal_backend/internal/proposals/transport"
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

// POST /api/proposals/generate
func (h *Handler) Generate(c *gin.Context) {
	var req transport.GenerateProposalRequest
	if !httpkit.BindJSON(c, h.val, &req) {
		return
	}

	proposal, err := h.svc.Generate(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, proposal)
}

// GET /api/proposals/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	proposal, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, proposal)
}

// GET /api/proposals/:id/pdf
func (h *Handler) DownloadURL(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	url, err := h.svc.DownloadURL(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, url)
}

// POST /api/proposals/:id/send
func (h *Handler) Send(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	proposal, err := h.svc.Send(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, proposal)
}

// POST /api/proposals/:id/decline
func (h *Handler) Decline(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	proposal, err := h.svc.Decline(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, proposal)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid proposal id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}
