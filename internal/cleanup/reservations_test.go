package cleanup

import (
	"context"
	"testing"
	"time"

	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/store/memory"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productFixture(tenantID, id string, qty int) domain.Product {
	return domain.Product{TenantID: tenantID, ID: id, InventoryQuantity: qty}
}

func TestRunTenant_ReleasesExpiredReservation(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	store.SeedProduct(productFixture("tenant-1", "sku-1", 10))

	_, err := store.ReserveInventory(ctx, "tenant-1", uuid.New(), "sku-1", nil, 2, -time.Minute)
	require.NoError(t, err)

	s := NewReservationSweeper(store, zerolog.Nop())
	released, err := s.RunTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, released)
}

func TestRunTenant_UnexpiredReservationUntouched(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	store.SeedProduct(productFixture("tenant-1", "sku-1", 10))

	_, err := store.ReserveInventory(ctx, "tenant-1", uuid.New(), "sku-1", nil, 2, time.Hour)
	require.NoError(t, err)

	s := NewReservationSweeper(store, zerolog.Nop())
	released, err := s.RunTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestRunAll_SweepsAcrossTenants(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	store.SeedProduct(productFixture("tenant-1", "sku-1", 10))
	store.SeedProduct(productFixture("tenant-2", "sku-1", 10))

	_, err := store.ReserveInventory(ctx, "tenant-1", uuid.New(), "sku-1", nil, 1, -time.Minute)
	require.NoError(t, err)
	_, err = store.ReserveInventory(ctx, "tenant-2", uuid.New(), "sku-1", nil, 1, -time.Minute)
	require.NoError(t, err)

	s := NewReservationSweeper(store, zerolog.Nop())
	released, err := s.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, released)
}
