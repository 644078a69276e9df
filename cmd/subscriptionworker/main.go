// Command subscriptionworker runs the cross-tenant subscription lifecycle
// sweep (spec §4.6: active -> past_due -> unpaid transitions) and the
// expired-reservation cleanup sweep on an interval.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paywall-gateway/config"
	"paywall-gateway/internal/cleanup"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/internal/store/memory"
	"paywall-gateway/internal/store/postgres"
	"paywall-gateway/internal/subscription"
	"paywall-gateway/pkg/logger"

	"github.com/rs/zerolog"
)

const sweepInterval = 5 * time.Minute

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

	subWorker := subscription.NewWorker(store, subscription.Config{
		GracePeriod: cfg.Subscription.GracePeriod,
		BatchLimit:  cfg.Subscription.BatchLimit,
	}, log)
	sweeper := cleanup.NewReservationSweeper(store, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", sweepInterval).Msg("subscription worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("subscription worker shutting down")
			return
		case <-ticker.C:
			toPastDue, toUnpaid, err := subWorker.RunAll(ctx)
			if err != nil {
				log.Error().Err(err).Msg("running subscription lifecycle sweep")
			} else if toPastDue+toUnpaid > 0 {
				log.Info().Int("to_past_due", toPastDue).Int("to_unpaid", toUnpaid).Msg("subscription lifecycle sweep complete")
			}

			released, err := sweeper.RunAll(ctx)
			if err != nil {
				log.Error().Err(err).Msg("running reservation cleanup sweep")
			} else if released > 0 {
				log.Info().Int("released", released).Msg("reservation cleanup sweep complete")
			}
		}
	}
}
