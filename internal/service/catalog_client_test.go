package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	snaps   map[string]models.ProductSnapshot
	readErr error
	writes  int
}

func (c *mapCache) CacheProductSnapshot(_ context.Context, snap *models.ProductSnapshot, _ time.Duration) error {
	c.snaps[snap.ProductID] = *snap
	c.writes++
	return nil
}

func (c *mapCache) GetProductSnapshot(_ context.Context, id string) (*models.ProductSnapshot, bool, error) {
	if c.readErr != nil {
		return nil, false, c.readErr
	}
	snap, ok := c.snaps[id]
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *mapCache) InvalidateProduct(_ context.Context, id string) error {
	delete(c.snaps, id)
	return nil
}

func catalogFixture(t *testing.T) (*store.MemoryStore, *mapCache, *CatalogClient) {
	t.Helper()
	ms := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, ms.UpsertProduct(ctx,
		&models.Product{ID: "p1", SupplierID: "s1", SKU: "SKU-1", Name: "Widget", UnitPrice: 1000, MinOrderQty: 1},
		&models.Inventory{Available: 5, InStock: true}))
	require.NoError(t, ms.UpsertProduct(ctx,
		&models.Product{ID: "p2", SupplierID: "s1", SKU: "SKU-2", Name: "Gadget", UnitPrice: 2000, MinOrderQty: 2},
		&models.Inventory{Available: 0, InStock: false}))

	cache := &mapCache{snaps: map[string]models.ProductSnapshot{}}
	return ms, cache, NewCatalogClient(ms, cache, time.Minute)
}

func TestCatalogClientReadsThroughCache(t *testing.T) {
	_, cache, c := catalogFixture(t)
	ctx := context.Background()

	snap, err := c.GetProductSnapshot(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", snap.Name)
	assert.Equal(t, 1, cache.writes)

	// Served from cache from now on.
	cache.snaps["p1"] = models.ProductSnapshot{ProductID: "p1", Name: "Cached"}
	snap, err = c.GetProductSnapshot(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Cached", snap.Name)

	require.NoError(t, c.InvalidateProduct(ctx, "p1"))
	snap, err = c.GetProductSnapshot(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", snap.Name)
}

func TestCatalogClientFallsBackWhenCacheFails(t *testing.T) {
	_, cache, c := catalogFixture(t)
	cache.readErr = errors.New("redis down")

	snap, err := c.GetProductSnapshot(context.Background(), "p2")
	require.NoError(t, err)
	assert.False(t, snap.InStock)
	assert.Equal(t, 2, snap.MinOrderQty)
}

func TestCatalogClientUnknownProduct(t *testing.T) {
	_, _, c := catalogFixture(t)

	_, err := c.GetProductSnapshot(context.Background(), "nope")
	assert.ErrorIs(t, err, negotiation.ErrNotFound)

	snaps, err := c.GetProductSnapshots(context.Background(), []string{"p1", "nope", "p1"})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
	assert.Contains(t, snaps, "p1")
}

func TestCatalogClientWarmCache(t *testing.T) {
	_, cache, c := catalogFixture(t)

	require.NoError(t, c.WarmCache(context.Background(), "s1"))
	assert.Len(t, cache.snaps, 2)
	assert.Equal(t, "Gadget", cache.snaps["p2"].Name)
}

func TestCatalogClientWithoutCache(t *testing.T) {
	ms, _, _ := catalogFixture(t)
	c := NewCatalogClient(ms, nil, time.Minute)

	snaps, err := c.GetProductSnapshots(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	assert.NoError(t, c.WarmCache(context.Background(), "s1"))
	assert.NoError(t, c.InvalidateProduct(context.Background(), "p1"))
}
