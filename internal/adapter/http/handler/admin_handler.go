package handler

import (
	"strings"
	"time"

	"paywall-gateway/internal/adapter/http/middleware"
	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/internal/subscription"
	"paywall-gateway/pkg/adminauth"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler gates privileged subscription actions behind a purpose-bound
// nonce assertion (spec §3.1): the bearer token names the nonce id, tenant,
// and purpose it was issued for; the store's atomic ConsumeNonce rejects
// replay independently of the token's own expiry.
type AdminHandler struct {
	store  ports.Store
	signer *adminauth.Signer
	subs   *subscription.Worker
}

func NewAdminHandler(store ports.Store, signer *adminauth.Signer, subs *subscription.Worker) *AdminHandler {
	return &AdminHandler{store: store, signer: signer, subs: subs}
}

const (
	purposeSubscriptionCancel = "subscription.cancel"
	adminTokenTTL             = 5 * time.Minute
)

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	return tok, ok && tok != ""
}

// IssueCancelToken handles POST /admin/subscriptions/:id/cancel-token: it
// stores a fresh single-use nonce and returns a short-lived bearer token
// bound to it, tenant id, and the cancel purpose. The caller presents this
// token back to CancelSubscription to actually perform the action.
func (h *AdminHandler) IssueCancelToken(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	now := time.Now()

	nonce := &domain.AdminNonce{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Purpose:   purposeSubscriptionCancel,
		CreatedAt: now,
		ExpiresAt: now.Add(adminTokenTTL),
	}
	if err := h.store.StoreAdminNonce(c.Request.Context(), nonce); err != nil {
		response.Error(c, err)
		return
	}

	tok, err := h.signer.Issue(tenantID, purposeSubscriptionCancel, nonce.ID, adminTokenTTL)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.Created(c, gin.H{"token": tok})
}

// CancelSubscription handles POST /admin/subscriptions/:id/cancel.
func (h *AdminHandler) CancelSubscription(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	tok, ok := bearerToken(c)
	if !ok {
		response.Error(c, apperror.InvalidSignature())
		return
	}

	nonceID, tokenTenantID, purpose, err := h.signer.Verify(tok)
	if err != nil {
		response.Error(c, apperror.InvalidSignature())
		return
	}
	if tokenTenantID != tenantID || purpose != purposeSubscriptionCancel {
		response.Error(c, apperror.InvalidSignature())
		return
	}

	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.InvalidField("id"))
		return
	}

	// Consume the nonce before acting: a replayed token must not cancel
	// twice even if the cancellation itself is idempotent.
	if err := h.store.ConsumeNonce(c.Request.Context(), tenantID, nonceID); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.subs.Cancel(c.Request.Context(), tenantID, subID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": "cancelled"})
}
