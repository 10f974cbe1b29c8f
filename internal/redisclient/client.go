package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"purchase-order-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// AcquireLock takes the lock if it is free. The returned token identifies
// the owner and must be passed to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock releases the lock only if token still owns it. A lock that
// expired and was taken by someone else is left alone.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	result, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(key)}, token).Result()
	if err != nil {
		return false, fmt.Errorf("release lock script failed: %w", err)
	}

	released, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return released == 1, nil
}

func productKey(productID string) string {
	return fmt.Sprintf("product:%s", productID)
}

// CacheProductSnapshot stores a catalog snapshot with TTL
func (c *Client) CacheProductSnapshot(ctx context.Context, snap *models.ProductSnapshot, ttl time.Duration) error {
	key := productKey(snap.ProductID)

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"name", snap.Name,
		"sku", snap.SKU,
		"unit_price", int64(snap.UnitPrice),
		"available", snap.StockAvailable,
		"in_stock", strconv.FormatBool(snap.InStock),
		"min_order_qty", snap.MinOrderQty,
	)
	pipe.Expire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// GetProductSnapshot returns a cached snapshot. ok is false on a cache miss.
func (c *Client) GetProductSnapshot(ctx context.Context, productID string) (*models.ProductSnapshot, bool, error) {
	result, err := c.rdb.HGetAll(ctx, productKey(productID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(result) == 0 {
		return nil, false, nil
	}

	snap, err := decodeSnapshot(productID, result)
	if err != nil {
		// A malformed entry is treated as a miss and dropped.
		c.rdb.Del(ctx, productKey(productID))
		return nil, false, nil
	}
	return snap, true, nil
}

// InvalidateProduct drops a cached snapshot
func (c *Client) InvalidateProduct(ctx context.Context, productID string) error {
	return c.rdb.Del(ctx, productKey(productID)).Err()
}

func decodeSnapshot(productID string, fields map[string]string) (*models.ProductSnapshot, error) {
	price, err := strconv.ParseInt(fields["unit_price"], 10, 64)
	if err != nil {
		return nil, err
	}
	available, err := strconv.Atoi(fields["available"])
	if err != nil {
		return nil, err
	}
	inStock, err := strconv.ParseBool(fields["in_stock"])
	if err != nil {
		return nil, err
	}
	moq, err := strconv.Atoi(fields["min_order_qty"])
	if err != nil {
		return nil, err
	}
	if fields["name"] == "" {
		return nil, errors.New("missing name")
	}
	return &models.ProductSnapshot{
		ProductID:      productID,
		Name:           fields["name"],
		SKU:            fields["sku"],
		UnitPrice:      models.Money(price),
		StockAvailable: available,
		InStock:        inStock,
		MinOrderQty:    moq,
	}, nil
}
