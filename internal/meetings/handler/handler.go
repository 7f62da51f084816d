package handler

import (
	"net/http"

	"agency_portal_backend/internal/meetings/service"
	"agency_portal_backend/internal/meetings/transport"
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

// POST /api/meetings
func (h *Handler) Book(c *gin.Context) {
	var req transport.BookMeetingRequest
	if !httpkit.BindJSON(c, h.val, &req) {
		return
	}
	meeting, err := h.svc.Book(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, meeting)
}

// GET /api/meetings/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid meeting id", nil)
		return
	}
	meeting, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, meeting)
}

// POST /api/transcribe
func (h *Handler) Transcribe(c *gin.Context) {
	var req transport.TranscribeRequest
	if !httpkit.BindJSON(c, h.val, &req) {
		return
	}
	result, err := h.svc.Transcribe(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
