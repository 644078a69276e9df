// Command webhookworker polls the outbound webhook dispatcher's pending
// queue on an interval (spec §4.4: retry with exponential backoff until
// dead-lettered).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paywall-gateway/config"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/internal/store/memory"
	"paywall-gateway/internal/store/postgres"
	"paywall-gateway/internal/webhookout"
	"paywall-gateway/pkg/breaker"
	"paywall-gateway/pkg/logger"

	"github.com/rs/zerolog"
)

const pollInterval = 15 * time.Second
const batchSize = 50

func main() {
	cfg, err := config.Load(os.Getenv("PWG_CONFIG_FILE"))
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("loading configuration")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	var store ports.Store
	if cfg.Storage.Backend == config.StorageBackendMemory {
		store = memory.New()
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

	webhookBreaker := breaker.New("webhook_out", breaker.Config{
		MaxRequests:         cfg.CircuitBreaker.Webhook.MaxRequests,
		Interval:            cfg.CircuitBreaker.Webhook.Interval,
		Timeout:             cfg.CircuitBreaker.Webhook.Timeout,
		ConsecutiveFailures: cfg.CircuitBreaker.Webhook.ConsecutiveFailures,
		FailureRatio:        cfg.CircuitBreaker.Webhook.FailureRatio,
		MinRequests:         cfg.CircuitBreaker.Webhook.MinRequests,
	})

	dispatcher := webhookout.New(store, http.DefaultClient, webhookBreaker, cfg.Callbacks.HMACSecret.Reveal(), webhookout.BackoffConfig{
		Initial:     cfg.Callbacks.Retry.InitialInterval,
		Multiplier:  cfg.Callbacks.Retry.Multiplier,
		MaxInterval: cfg.Callbacks.Retry.MaxInterval,
		Jitter:      cfg.Callbacks.Retry.Jitter,
	}, cfg.Callbacks.Timeout, false, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", pollInterval).Msg("webhook worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("webhook worker shutting down")
			return
		case <-ticker.C:
			delivered, retried, deadLettered, err := dispatcher.ProcessBatch(ctx, batchSize)
			if err != nil {
				log.Error().Err(err).Msg("processing webhook batch")
				continue
			}
			if delivered+retried+deadLettered > 0 {
				log.Info().Int("delivered", delivered).Int("retried", retried).Int("dead_lettered", deadLettered).Msg("webhook batch processed")
			}
		}
	}
}
