// Package handler implements the HTTP surface of spec §6.1: cart
// quote/checkout/verify/status and the inbound Stripe webhook.
package handler

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"paywall-gateway/internal/adapter/http/middleware"
	"paywall-gateway/internal/cart"
	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/internal/x402"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CartHandler serves the cart endpoints of spec §6.1.
type CartHandler struct {
	cart     *cart.Service
	store    ports.Store
	verifier *x402.Verifier
	network  string
}

func NewCartHandler(cartSvc *cart.Service, store ports.Store, verifier *x402.Verifier, network string) *CartHandler {
	return &CartHandler{cart: cartSvc, store: store, verifier: verifier, network: network}
}

type quoteItemRequest struct {
	ProductID      string   `json:"product_id" binding:"required"`
	VariantID      *string  `json:"variant_id,omitempty"`
	Quantity       int      `json:"quantity" binding:"required"`
	AppliedCoupons []string `json:"applied_coupons,omitempty"`
}

type quoteRequest struct {
	Items    []quoteItemRequest     `json:"items" binding:"required"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Quote handles POST /cart/quote.
func (h *CartHandler) Quote(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.InvalidField("items"))
		return
	}

	items := make([]cart.QuoteItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, cart.QuoteItemInput{
			ProductID:      it.ProductID,
			VariantID:      it.VariantID,
			Quantity:       it.Quantity,
			AppliedCoupons: it.AppliedCoupons,
		})
	}

	quote, err := h.cart.Quote(c.Request.Context(), tenantID, items, req.Metadata)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.cart.Reserve(c.Request.Context(), tenantID, quote); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, quote)
}

// Status handles GET /cart/{id}.
func (h *CartHandler) Status(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.InvalidField("id"))
		return
	}

	quote, err := h.store.GetCartQuote(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, quote)
}

// InventoryStatus handles GET /cart/{id}/inventory-status.
func (h *CartHandler) InventoryStatus(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.InvalidField("id"))
		return
	}

	quote, err := h.store.GetCartQuote(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	type lineStatus struct {
		ProductID string `json:"product_id"`
		Requested int    `json:"requested"`
		Available int    `json:"available"`
		Backorder bool   `json:"backorder_allowed"`
	}
	out := make([]lineStatus, 0, len(quote.Items))
	for _, item := range quote.Items {
		product, err := h.store.GetProduct(c.Request.Context(), tenantID, item.ResourceID)
		if err != nil {
			response.Error(c, err)
			return
		}
		out = append(out, lineStatus{
			ProductID: item.ResourceID,
			Requested: item.Quantity,
			Available: product.InventoryQuantity,
			Backorder: product.BackorderAllowed,
		})
	}
	response.OK(c, out)
}

// x402Envelope is the small JSON envelope spec §6.3 carries alongside the
// base64 transaction wire bytes.
type x402Envelope struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Payload     struct {
		Transaction           string `json:"transaction"`
		Resource              string `json:"resource"`
		Memo                  string `json:"memo,omitempty"`
		RecipientTokenAccount string `json:"recipient_token_account,omitempty"`
		Gasless               bool   `json:"gasless,omitempty"`
	} `json:"payload"`
}

// Verify handles POST /cart/{id}/verify: decodes the X-PAYMENT header,
// verifies it against the cart's requirement, submits and confirms it, and
// marks the cart paid.
func (h *CartHandler) Verify(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.InvalidField("id"))
		return
	}

	header := c.GetHeader("X-PAYMENT")
	if header == "" {
		response.Error(c, apperror.MissingField("x-payment"))
		return
	}
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		response.Error(c, apperror.InvalidField("x-payment"))
		return
	}
	var env x402Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		response.Error(c, apperror.InvalidField("x-payment"))
		return
	}

	quote, err := h.store.GetCartQuote(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if quote.Expired(time.Now()) && !quote.Paid() {
		response.Error(c, apperror.QuoteExpired())
		return
	}

	req := ports.Requirement{
		RecipientTokenAccount: env.Payload.RecipientTokenAccount,
		TokenMint:             quote.Total.AssetCode,
		TokenDecimals:         quote.Total.Decimals,
		AmountAtomic:          &quote.Total.AtomicAmount,
		ResourceID:            quote.ResourceIDString(),
		Network:               env.Network,
	}

	result, err := h.verifier.Verify(c.Request.Context(), env.Payload.Transaction, req, env.Payload.Gasless)
	if err != nil {
		response.Error(c, err)
		return
	}

	// A cart already claimed by this same wallet is a replay of a prior
	// successful verify (same X-PAYMENT resubmitted) — return the cached
	// result instead of failing MarkPaid's WHERE wallet_paid_by IS NULL
	// guard. Claim by a different wallet is a genuine conflict.
	if quote.Paid() {
		if *quote.WalletPaidBy != result.Wallet {
			response.Error(c, apperror.Conflict("invalid_operation", "cart already paid by a different wallet"))
			return
		}
		response.OK(c, gin.H{"verified": true, "wallet": result.Wallet, "expires_at": result.ExpiresAt})
		return
	}

	if err := h.cart.MarkPaid(c.Request.Context(), tenantID, id, result.Wallet); err != nil {
		response.Error(c, err)
		return
	}

	created, order, err := h.cart.EmitOrder(c.Request.Context(), tenantID, cart.EmitOrderInput{
		Source:     domain.OrderSourceOnchain,
		PurchaseID: result.Signature,
		ResourceID: quote.ResourceIDString(),
		Items:      quote.Items,
		Amount:     quote.Total,
		Actor:      "x402_verify",
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		_, _ = h.store.ConvertReservations(c.Request.Context(), tenantID, id)
	}

	response.OK(c, gin.H{"order": order, "signature": result.Signature, "created": created, "expires_at": result.ExpiresAt})
}
