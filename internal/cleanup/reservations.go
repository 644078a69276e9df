// Package cleanup implements the cron-like maintenance drivers spec §1/§4.5
// describe as callers of the same storage primitives the core exposes: no
// privileged path, just a scheduled sweep.
package cleanup

import (
	"context"
	"time"

	"paywall-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// ReservationSweeper transitions expired active inventory reservations to
// released, per spec §4.5's "a cleanup job transitions expired active rows
// to released".
type ReservationSweeper struct {
	store ports.Store
	log   zerolog.Logger
}

func NewReservationSweeper(store ports.Store, log zerolog.Logger) *ReservationSweeper {
	return &ReservationSweeper{store: store, log: log}
}

// RunTenant releases every expired active reservation for one tenant.
func (s *ReservationSweeper) RunTenant(ctx context.Context, tenantID string) (int, error) {
	return s.store.ReleaseExpiredReservations(ctx, tenantID, time.Now())
}

// RunAll sweeps every known tenant once, via ListTenantIDs pagination.
func (s *ReservationSweeper) RunAll(ctx context.Context) (released int, err error) {
	cursor := ""
	for {
		ids, next, err := s.store.ListTenantIDs(ctx, cursor, 1000)
		if err != nil {
			return released, err
		}
		for _, tenantID := range ids {
			n, err := s.RunTenant(ctx, tenantID)
			if err != nil {
				s.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("cleanup: reservation sweep failed")
				continue
			}
			released += n
		}
		if next == "" {
			return released, nil
		}
		cursor = next
	}
}
