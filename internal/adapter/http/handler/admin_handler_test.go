package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paywall-gateway/internal/adapter/http/middleware"
	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/store/memory"
	"paywall-gateway/internal/subscription"
	"paywall-gateway/pkg/adminauth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newAdminFixture(t *testing.T) (*AdminHandler, *memory.Store, uuid.UUID) {
	t.Helper()
	store := memory.New()
	sig := "sig-" + uuid.NewString()
	sub := &domain.Subscription{ID: uuid.New(), TenantID: "tenant-1", PaymentSignature: &sig, Status: domain.SubscriptionActive}
	ok, err := store.TryStoreSubscriptionByPaymentSignature(context.Background(), sub)
	require.NoError(t, err)
	require.True(t, ok)

	signer := adminauth.NewSigner("admin-secret")
	worker := subscription.NewWorker(store, subscription.DefaultConfig(), zerolog.Nop())
	return NewAdminHandler(store, signer, worker), store, sub.ID
}

func newGinContext(t *testing.T, method, path, tenantID, bearer string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	c.Request = req
	c.Set(middleware.CtxTenantID, tenantID)
	c.Params = params
	return c, w
}

// issueToken drives the real issue-token handler so tests exercise the full
// nonce-store-then-sign round trip, not a hand-signed token the nonce store
// never saw.
func issueToken(t *testing.T, h *AdminHandler, tenantID, subID string) string {
	t.Helper()
	c, w := newGinContext(t, http.MethodPost, "/admin/subscriptions/"+subID+"/cancel-token", tenantID, "", gin.Params{{Key: "id", Value: subID}})
	h.IssueCancelToken(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)
	return body.Data.Token
}

func TestIssueCancelToken_Succeeds(t *testing.T) {
	h, _, subID := newAdminFixture(t)
	tok := issueToken(t, h, "tenant-1", subID.String())
	assert.NotEmpty(t, tok)
}

func TestCancelSubscription_ValidTokenSucceeds(t *testing.T) {
	h, _, subID := newAdminFixture(t)
	tok := issueToken(t, h, "tenant-1", subID.String())

	c, w := newGinContext(t, http.MethodPost, "/admin/subscriptions/"+subID.String()+"/cancel", "tenant-1", tok, gin.Params{{Key: "id", Value: subID.String()}})
	h.CancelSubscription(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelSubscription_MissingBearerRejected(t *testing.T) {
	h, _, subID := newAdminFixture(t)
	c, w := newGinContext(t, http.MethodPost, "/admin/subscriptions/"+subID.String()+"/cancel", "tenant-1", "", gin.Params{{Key: "id", Value: subID.String()}})
	h.CancelSubscription(c)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestCancelSubscription_WrongPurposeRejected(t *testing.T) {
	h, _, subID := newAdminFixture(t)
	signer := adminauth.NewSigner("admin-secret")
	tok, err := signer.Issue("tenant-1", "refund.force", uuid.New(), time.Minute)
	require.NoError(t, err)

	c, w := newGinContext(t, http.MethodPost, "/admin/subscriptions/"+subID.String()+"/cancel", "tenant-1", tok, gin.Params{{Key: "id", Value: subID.String()}})
	h.CancelSubscription(c)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestCancelSubscription_CrossTenantTokenRejected(t *testing.T) {
	h, _, subID := newAdminFixture(t)
	tok := issueToken(t, h, "tenant-2", subID.String())

	c, w := newGinContext(t, http.MethodPost, "/admin/subscriptions/"+subID.String()+"/cancel", "tenant-1", tok, gin.Params{{Key: "id", Value: subID.String()}})
	h.CancelSubscription(c)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestCancelSubscription_ReplayedTokenRejected(t *testing.T) {
	h, _, subID := newAdminFixture(t)
	tok := issueToken(t, h, "tenant-1", subID.String())

	c1, w1 := newGinContext(t, http.MethodPost, "/admin/subscriptions/"+subID.String()+"/cancel", "tenant-1", tok, gin.Params{{Key: "id", Value: subID.String()}})
	h.CancelSubscription(c1)
	require.Equal(t, http.StatusOK, w1.Code)

	c2, w2 := newGinContext(t, http.MethodPost, "/admin/subscriptions/"+subID.String()+"/cancel", "tenant-1", tok, gin.Params{{Key: "id", Value: subID.String()}})
	h.CancelSubscription(c2)
	assert.NotEqual(t, http.StatusOK, w2.Code)
}

func TestCancelSubscription_UnsignedTokenRejected(t *testing.T) {
	h, _, subID := newAdminFixture(t)
	c, w := newGinContext(t, http.MethodPost, "/admin/subscriptions/"+subID.String()+"/cancel", "tenant-1", "not-a-jwt", gin.Params{{Key: "id", Value: subID.String()}})
	h.CancelSubscription(c)
	assert.NotEqual(t, http.StatusOK, w.Code)
}
