// Command server runs the HTTP surface of spec §6.1: cart quoting and
// checkout, on-chain payment verification, and the inbound Stripe webhook.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paywall-gateway/config"
	"paywall-gateway/internal/adapter/http/handler"
	"paywall-gateway/internal/cart"
	"paywall-gateway/internal/catalog"
	"paywall-gateway/internal/checkout"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/internal/store/memory"
	"paywall-gateway/internal/store/postgres"
	"paywall-gateway/internal/subscription"
	"paywall-gateway/internal/webhookin"
	"paywall-gateway/internal/webhookout"
	"paywall-gateway/internal/x402"
	"paywall-gateway/pkg/adminauth"
	"paywall-gateway/pkg/breaker"
	"paywall-gateway/pkg/idemcache"
	"paywall-gateway/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	cfgPath := os.Getenv("PWG_CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("loading configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	var store ports.Store
	if cfg.Storage.Backend == config.StorageBackendMemory {
		store = memory.New()
		log.Info().Msg("using in-memory store")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pool, err := postgres.NewPool(ctx, cfg.Storage, log)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to postgres")
		}
		defer pool.Close()
		store = postgres.New(pool, cfg.Storage.SchemaMapping)
	}

	catalogRepo := catalog.NewStaticRepository()
	cartSvc := cart.New(store, catalogRepo, cart.DefaultConfig())

	webhookBreaker := breaker.New("webhook_out", breaker.Config{
		MaxRequests:         cfg.CircuitBreaker.Webhook.MaxRequests,
		Interval:            cfg.CircuitBreaker.Webhook.Interval,
		Timeout:             cfg.CircuitBreaker.Webhook.Timeout,
		ConsecutiveFailures: cfg.CircuitBreaker.Webhook.ConsecutiveFailures,
		FailureRatio:        cfg.CircuitBreaker.Webhook.FailureRatio,
		MinRequests:         cfg.CircuitBreaker.Webhook.MinRequests,
	})
	rpcBreaker := breaker.New("solana_rpc", breaker.Config{
		MaxRequests:         cfg.CircuitBreaker.SolanaRPC.MaxRequests,
		Interval:            cfg.CircuitBreaker.SolanaRPC.Interval,
		Timeout:             cfg.CircuitBreaker.SolanaRPC.Timeout,
		ConsecutiveFailures: cfg.CircuitBreaker.SolanaRPC.ConsecutiveFailures,
		FailureRatio:        cfg.CircuitBreaker.SolanaRPC.FailureRatio,
		MinRequests:         cfg.CircuitBreaker.SolanaRPC.MinRequests,
	})
	outDispatcher := webhookout.New(store, http.DefaultClient, webhookBreaker, cfg.Callbacks.HMACSecret.Reveal(), webhookout.BackoffConfig{
		Initial:     cfg.Callbacks.Retry.InitialInterval,
		Multiplier:  cfg.Callbacks.Retry.Multiplier,
		MaxInterval: cfg.Callbacks.Retry.MaxInterval,
		Jitter:      cfg.Callbacks.Retry.Jitter,
	}, cfg.Callbacks.Timeout, false, log)

	inProcessor := webhookin.New(store, cartSvc, outDispatcher, webhookin.Config{
		SigningSecret:   cfg.Stripe.WebhookSigningSecret.Reveal(),
		ProcessingTTL:   2 * time.Minute,
		CompletedTTL:    24 * time.Hour,
		RequireTenantID: true,
	}, log)
	if cfg.Cache.Addr != "" {
		cache := idemcache.New(cfg.Cache.Addr)
		defer cache.Close()
		inProcessor = inProcessor.WithCache(cache)
	}

	wallets := make([]*x402.ServerWallet, 0, len(cfg.X402.ServerWallets))
	for _, raw := range cfg.X402.ServerWallets {
		w, err := x402.NewServerWallet(raw.Reveal())
		if err != nil {
			log.Fatal().Err(err).Msg("loading server wallet")
		}
		wallets = append(wallets, w)
		log.Info().Str("wallet_fp", w.Fingerprint()).Msg("loaded server wallet")
	}
	walletRouter := x402.NewWalletRouter(wallets, nil)

	rpcAdapter := x402.NewRPCAdapter(cfg.X402.RPCURL.Reveal(), cfg.X402.Commitment)

	submitCfg := x402.DefaultSubmitConfig()
	submitCfg.SkipPreflight = false
	submitCfg.CommitmentLevel = cfg.X402.Commitment

	queueCfg := x402.TransactionQueueConfig{
		MinTimeBetweenSends: cfg.X402.TxQueue.MinTimeBetweenSends,
		MaxInFlight:         cfg.X402.TxQueue.MaxInFlight,
	}

	ataCfg := x402.DefaultATAConfig()
	ataCfg.Enabled = cfg.X402.AutoCreateTokenAccount

	verifier := x402.NewVerifier(rpcAdapter, rpcBreaker, walletRouter, submitCfg, queueCfg, ataCfg, x402.VerifierConfig{
		Network:        "solana",
		GaslessEnabled: cfg.X402.GaslessEnabled,
	}, log)
	defer verifier.Shutdown()

	stripeFactory := checkout.NewStripeSessionFactory(cfg.Stripe.APIKey.Reveal())

	subWorker := subscription.NewWorker(store, subscription.Config{
		GracePeriod: cfg.Subscription.GracePeriod,
		BatchLimit:  cfg.Subscription.BatchLimit,
	}, log)
	adminSigner := adminauth.NewSigner(cfg.Admin.NonceSecret.Reveal())

	cartHandler := handler.NewCartHandler(cartSvc, store, verifier, "solana")
	checkoutHandler := handler.NewCheckoutHandler(store, cfg.Callbacks.PaymentSuccessURL, stripeFactory.Create)
	webhookHandler := handler.NewWebhookHandler(inProcessor)
	adminHandler := handler.NewAdminHandler(store, adminSigner, subWorker)

	router := handler.SetupRouter(handler.RouterDeps{
		Cart:        cartHandler,
		Checkout:    checkoutHandler,
		Webhook:     webhookHandler,
		Admin:       adminHandler,
		RoutePrefix: cfg.Server.RoutePrefix,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
