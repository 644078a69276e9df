// Package postgres is the relational-backed Store implementation of spec
// §4.1: explicit transactions, SELECT ... FOR UPDATE / FOR UPDATE SKIP
// LOCKED row locking, and token-aware table-name substitution driven by
// pkg/schemasql so deployments can fold this schema into an existing one.
package postgres

import (
	"context"
	"fmt"

	"paywall-gateway/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Pool is the subset of *pgxpool.Pool the Store needs, narrowed to an
// interface so tests can substitute pgxmock's pool-shaped expectation
// builder (github.com/pashagolub/pgxmock/v4).
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPool creates a PostgreSQL connection pool using pgx, matching the
// teacher's pool bring-up (min/max conns, ping on startup), driven by
// storage.postgres_url and storage.postgres_pool (spec §6.5).
func NewPool(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL.Reveal())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.PostgresPool.Max
	poolCfg.MinConns = cfg.PostgresPool.Min

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().
		Int32("max_conns", cfg.PostgresPool.Max).
		Int32("min_conns", cfg.PostgresPool.Min).
		Msg("PostgreSQL connection pool established")

	return pool, nil
}

// HealthCheck implements a basic dependency health probe.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck { return &HealthCheck{pool: pool} }

func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, "SELECT 1")
	return err
}

func (h *HealthCheck) Name() string { return "postgresql" }
