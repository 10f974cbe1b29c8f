package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/store"
	"purchase-order-service/internal/util"

	"go.uber.org/zap"
)

// ProductSource is the authoritative catalog.
type ProductSource interface {
	GetProductSnapshot(ctx context.Context, productID string) (*models.ProductSnapshot, error)
	GetProductSnapshots(ctx context.Context, productIDs []string) (map[string]models.ProductSnapshot, error)
	ListProducts(ctx context.Context, supplierID string) ([]models.Product, error)
}

// SnapshotCache is a read-through cache in front of the catalog.
type SnapshotCache interface {
	CacheProductSnapshot(ctx context.Context, snap *models.ProductSnapshot, ttl time.Duration) error
	GetProductSnapshot(ctx context.Context, productID string) (*models.ProductSnapshot, bool, error)
	InvalidateProduct(ctx context.Context, productID string) error
}

// CatalogClient resolves product snapshots, Redis first and the store as
// fallback. cache may be nil.
type CatalogClient struct {
	source ProductSource
	cache  SnapshotCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogClient creates a new catalog client
func NewCatalogClient(source ProductSource, cache SnapshotCache, ttl time.Duration) *CatalogClient {
	return &CatalogClient{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// GetProductSnapshot returns the current snapshot of one product.
func (c *CatalogClient) GetProductSnapshot(ctx context.Context, productID string) (*models.ProductSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.GetProductSnapshot")
	defer span.End()

	if snap, ok := c.fromCache(ctx, productID); ok {
		return snap, nil
	}

	snap, err := c.source.GetProductSnapshot(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", negotiation.ErrNotFound, productID)
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
	}
	util.CatalogLookupsTotal.WithLabelValues("store").Inc()
	c.toCache(ctx, snap)
	return snap, nil
}

// GetProductSnapshots resolves several products at once. Unknown ids are
// absent from the result.
func (c *CatalogClient) GetProductSnapshots(ctx context.Context, productIDs []string) (map[string]models.ProductSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.GetProductSnapshots")
	defer span.End()

	result := make(map[string]models.ProductSnapshot, len(productIDs))
	var missing []string
	for _, id := range productIDs {
		if _, seen := result[id]; seen {
			continue
		}
		if snap, ok := c.fromCache(ctx, id); ok {
			result[id] = *snap
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	loaded, err := c.source.GetProductSnapshots(ctx, missing)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	util.CatalogLookupsTotal.WithLabelValues("store").Add(float64(len(loaded)))
	for id, snap := range loaded {
		snap := snap
		result[id] = snap
		c.toCache(ctx, &snap)
	}
	return result, nil
}

// InvalidateProduct drops a product from the cache after a catalog change.
func (c *CatalogClient) InvalidateProduct(ctx context.Context, productID string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.InvalidateProduct(ctx, productID)
}

// WarmCache loads a supplier's catalog into Redis.
func (c *CatalogClient) WarmCache(ctx context.Context, supplierID string) error {
	if c.cache == nil {
		return nil
	}
	c.logger.Info("Starting catalog cache warm-up", zap.String("supplier_id", supplierID))

	products, err := c.source.ListProducts(ctx, supplierID)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	snaps, err := c.source.GetProductSnapshots(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	for _, snap := range snaps {
		snap := snap
		c.toCache(ctx, &snap)
	}

	c.logger.Info("Catalog cache warm-up completed", zap.Int("count", len(snaps)))
	return nil
}

func (c *CatalogClient) fromCache(ctx context.Context, productID string) (*models.ProductSnapshot, bool) {
	if c.cache == nil {
		return nil, false
	}
	snap, ok, err := c.cache.GetProductSnapshot(ctx, productID)
	if err != nil {
		c.logger.Warn("Catalog cache read failed, falling back to store",
			zap.String("product_id", productID),
			zap.Error(err))
		return nil, false
	}
	if ok {
		util.CatalogLookupsTotal.WithLabelValues("cache").Inc()
	}
	return snap, ok
}

func (c *CatalogClient) toCache(ctx context.Context, snap *models.ProductSnapshot) {
	if c.cache == nil {
		return
	}
	if err := c.cache.CacheProductSnapshot(ctx, snap, c.ttl); err != nil {
		c.logger.Warn("Failed to cache product snapshot",
			zap.String("product_id", snap.ProductID),
			zap.Error(err))
	}
}
