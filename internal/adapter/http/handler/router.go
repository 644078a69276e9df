package handler

import (
	"paywall-gateway/internal/adapter/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps wires every handler the HTTP surface needs.
type RouterDeps struct {
	Cart        *CartHandler
	Checkout    *CheckoutHandler
	Webhook     *WebhookHandler
	Admin       *AdminHandler
	RoutePrefix string
	Logger      zerolog.Logger
}

// SetupRouter mounts the HTTP surface of spec §6.1.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(deps.Logger))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The inbound webhook carries its own signature-based authentication;
	// it is not tenant-scoped by header, since tenant_id travels in the
	// event metadata instead (see webhookin.Processor).
	r.POST("/webhooks/stripe", deps.Webhook.Stripe)

	v1 := r.Group(deps.RoutePrefix)
	v1.Use(middleware.TenantResolver())
	{
		v1.POST("/cart/quote", deps.Cart.Quote)
		v1.POST("/cart/checkout", deps.Checkout.Checkout)
		v1.GET("/cart/:id", deps.Cart.Status)
		v1.POST("/cart/:id/verify", deps.Cart.Verify)
		v1.GET("/cart/:id/inventory-status", deps.Cart.InventoryStatus)
		v1.POST("/admin/subscriptions/:id/cancel-token", deps.Admin.IssueCancelToken)
		v1.POST("/admin/subscriptions/:id/cancel", deps.Admin.CancelSubscription)
	}

	return r
}
