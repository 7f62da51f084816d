package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"agency_portal_backend/platform/httpkit"
	"agency_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	signatureHeader = "Stripe-Signature"
	maxBodyBytes    = int64(1 << 20)
)

// EventProcessor applies a verified payment event.
type EventProcessor interface {
	Process(ctx context.Context, event stripe.Event) error
}

type Handler struct {
	processor EventProcessor
	secret    string
	log       *logger.Logger
}

func New(processor EventProcessor, secret string, log *logger.Logger) *Handler {
	return &Handler{processor: processor, secret: secret, log: log}
}

// Webhook verifies the signature over the raw body before anything is
// decoded. Rejected payloads never reach the dispatcher.
// POST /api/stripe/webhook
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		h.log.WebhookRejected(c.ClientIP(), "unreadable_body", err)
		httpkit.Error(c, http.StatusBadRequest, "unreadable webhook body", nil)
		return
	}
	if int64(len(body)) > maxBodyBytes {
		h.log.WebhookRejected(c.ClientIP(), "body_too_large", fmt.Errorf("body exceeds %d bytes", maxBodyBytes))
		httpkit.Error(c, http.StatusRequestEntityTooLarge, "webhook payload too large", nil)
		return
	}

	event, err := webhook.ConstructEventWithOptions(body, c.GetHeader(signatureHeader), h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.log.WebhookRejected(c.ClientIP(), "invalid_signature", err)
		httpkit.Error(c, http.StatusBadRequest, "invalid webhook signature", nil)
		return
	}

	if httpkit.HandleError(c, h.processor.Process(c.Request.Context(), event)) {
		return
	}
	httpkit.OK(c, gin.H{"received": true})
}
