package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techsolutions/backend/internal/domain"
)

func TestEntryKeyNormalizesQuery(t *testing.T) {
	assert.Equal(t, entryKey("Mouse"), entryKey("  mouse "))
	assert.NotEqual(t, entryKey("mouse"), entryKey("monitor"))
	assert.Contains(t, entryKey(""), keyPrefix)
}

func TestNoopCatalogCacheAlwaysMisses(t *testing.T) {
	var c CatalogCache = NoopCatalogCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "x", []domain.SellableProduct{{Stock: 1}}, time.Minute))
	_, ok, err := c.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Purge(ctx))
}

func TestRedisCatalogCacheRoundTripAndPurge(t *testing.T) {
	addr := os.Getenv("TECHSOLUTIONS_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	c := NewRedisCatalogCache(addr, "", 15)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	require.NoError(t, c.Purge(ctx))

	listing := []domain.SellableProduct{{
		Product: domain.Product{ID: 7, Name: "Keyboard", SKU: "KB-01", Price: decimal.RequireFromString("25.50"), Active: true},
		Stock:   4,
	}}
	require.NoError(t, c.Set(ctx, "key", listing, time.Minute))

	got, ok, err := c.Get(ctx, "KEY")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, 4, got[0].Stock)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("25.5")))

	require.NoError(t, c.Purge(ctx))
	_, ok, err = c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}
