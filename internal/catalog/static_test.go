package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductUnitPrice_Found(t *testing.T) {
	r := NewStaticRepository()
	r.SetPrice("tenant-1", "sku-1", Entry{AssetCode: "USDC", AtomicAmount: 2500000, Decimals: 6})

	asset, atomic, decimals, err := r.ProductUnitPrice(context.Background(), "tenant-1", "sku-1")
	require.NoError(t, err)
	assert.Equal(t, "USDC", asset)
	assert.Equal(t, int64(2500000), atomic)
	assert.Equal(t, uint8(6), decimals)
}

func TestProductUnitPrice_NotFound(t *testing.T) {
	r := NewStaticRepository()
	_, _, _, err := r.ProductUnitPrice(context.Background(), "tenant-1", "missing")
	assert.Error(t, err)
}

func TestProductUnitPrice_TenantIsolation(t *testing.T) {
	r := NewStaticRepository()
	r.SetPrice("tenant-1", "sku-1", Entry{AssetCode: "USDC", AtomicAmount: 100, Decimals: 6})
	_, _, _, err := r.ProductUnitPrice(context.Background(), "tenant-2", "sku-1")
	assert.Error(t, err)
}

func TestCouponValid(t *testing.T) {
	r := NewStaticRepository()
	r.SetCouponValid("tenant-1", "SAVE10", true)

	ok, err := r.CouponValid(context.Background(), "tenant-1", "SAVE10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CouponValid(context.Background(), "tenant-1", "UNKNOWN")
	require.NoError(t, err)
	assert.False(t, ok)
}
