package handler

import (
	"io"
	"net/http"

	"paywall-gateway/internal/webhookin"

	"github.com/gin-gonic/gin"
)

// WebhookHandler serves the inbound Stripe webhook endpoint (spec §6.1).
type WebhookHandler struct {
	processor *webhookin.Processor
}

func NewWebhookHandler(processor *webhookin.Processor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Stripe handles POST /webhooks/stripe.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_field", "message": "could not read request body"}})
		return
	}

	status, respBody, err := h.processor.Handle(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil && status == 0 {
		status = http.StatusBadRequest
	}
	c.Data(status, "application/json", respBody)
}
