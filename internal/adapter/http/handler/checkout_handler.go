package handler

import (
	"paywall-gateway/internal/adapter/http/middleware"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CheckoutHandler creates hosted-checkout sessions for the card rail (spec
// §4.4/§6.1): "for hosted checkout, create the external session with
// metadata {tenant_id, resource_id: cart:<id>}".
type CheckoutHandler struct {
	store         ports.Store
	checkoutURL   string
	sessionCreate func(tenantID, cartID, successURL string) (sessionURL string, err error)
}

func NewCheckoutHandler(store ports.Store, checkoutURL string, sessionCreate func(tenantID, cartID, successURL string) (string, error)) *CheckoutHandler {
	return &CheckoutHandler{store: store, checkoutURL: checkoutURL, sessionCreate: sessionCreate}
}

// Checkout handles POST /cart/checkout.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	var req struct {
		CartID string `json:"cart_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.InvalidField("cart_id"))
		return
	}
	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		response.Error(c, apperror.InvalidField("cart_id"))
		return
	}

	quote, err := h.store.GetCartQuote(c.Request.Context(), tenantID, cartID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if quote.Paid() {
		response.Error(c, apperror.Conflict("invalid_operation", "cart already paid"))
		return
	}

	sessionURL, err := h.sessionCreate(tenantID, quote.ResourceIDString(), h.checkoutURL)
	if err != nil {
		response.Error(c, apperror.Network("network", "failed to create hosted checkout session", err))
		return
	}

	response.Created(c, gin.H{"checkout_url": sessionURL})
}
