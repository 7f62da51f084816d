package handler

import (
	"net/http"
	"strconv"

	"agency_portal_backend/internal/clients/service"
	"agency_portal_backend/internal/clients/transport"
	projectdomain "agency_portal_backend/internal/projects/domain"
	"agency_portal_backend/platform/httpkit"
	"agency_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc       *service.Service
	converter *service.Converter
	val       *validator.Validator
}

func New(svc *service.Service, converter *service.Converter, val *validator.Validator) *Handler {
	return &Handler{svc: svc, converter: converter, val: val}
}

// ConvertLead is the manual staff conversion.
// POST /api/leads/:id/convert
func (h *Handler) ConvertLead(c *gin.Context) {
	leadID, ok := parseID(c, "invalid lead id")
	if !ok {
		return
	}

	var req transport.ConvertLeadRequest
	if !httpkit.BindJSON(c, h.val, &req) {
		return
	}

	result, err := h.converter.Convert(c.Request.Context(), leadID, service.ConversionInput{
		Package:       projectdomain.Package(req.Package),
		KeyPoints:     req.KeyPoints,
		ClientNotes:   req.ClientNotes,
		InternalNotes: req.InternalNotes,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, transport.ConvertLeadResponse{
		LeadID:    result.LeadID,
		ClientID:  result.ClientID,
		ProjectID: result.ProjectID,
		Created:   result.Created,
	})
}

// GET /api/clients/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.authorizedClient(c)
	if !ok {
		return
	}

	client, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, client)
}

// GET /api/clients/:id/activities?limit=50
func (h *Handler) Activities(c *gin.Context) {
	id, ok := h.authorizedClient(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.svc.Activities(c.Request.Context(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

// authorizedClient parses :id and lets staff through; client users may only
// read their own account.
func (h *Handler) authorizedClient(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.UUID{}, false
	}
	id, ok := parseID(c, "invalid client id")
	if !ok {
		return uuid.UUID{}, false
	}
	if !identity.IsStaff() && identity.ClientID() != id.String() {
		httpkit.Error(c, http.StatusForbidden, "forbidden", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func parseID(c *gin.Context, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msg, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
