package handler

import (
	"strconv"

	"agency_portal_backend/internal/notification/inapp"
	"agency_portal_backend/internal/notification/sse"
	"agency_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type HTTPHandler struct {
	svc    *inapp.Service
	stream *sse.Service
}

func NewHTTPHandler(svc *inapp.Service, stream *sse.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc, stream: stream}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/stream", h.stream.Handler(userID))
}

// GET /api/notifications?limit=20
func (h *HTTPHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	items, err := h.svc.List(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func userID(c *gin.Context) (string, bool) {
	id := c.GetString(httpkit.ContextUserIDKey)
	return id, id != ""
}
