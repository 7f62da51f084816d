package handler

import (
	"agency_portal_backend/internal/reports/service"
	"agency_portal_backend/internal/reports/transport"
	"agency_portal_backend/platform/httpkit"
	"agency_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// POST /api/reports/monthly
// Without a clientId every client on a care plan gets a report.
func (h *Handler) GenerateMonthly(c *gin.Context) {
	var req transport.GenerateReportRequest
	if !httpkit.BindJSON(c, h.val, &req) {
		return
	}

	period, err := h.svc.ResolvePeriod(req.Year, req.Month)
	if httpkit.HandleError(c, err) {
		return
	}

	if req.ClientID != nil {
		report, err := h.svc.Generate(c.Request.Context(), *req.ClientID, period)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, report)
		return
	}

	batch, err := h.svc.GenerateAll(c.Request.Context(), period)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, batch)
}
