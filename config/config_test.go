package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("ORDER_LOCK_TTL_SECONDS", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 10*time.Second, cfg.Business.OrderLockTTL)
	assert.Equal(t, 8, cfg.Business.BulkConcurrency)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "none")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("BULK_CONCURRENCY", "3")
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "not-a-number")

	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Business.BulkConcurrency)
	assert.Equal(t, time.Minute, cfg.Business.CatalogCacheTTL)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, splitList(" a:1, ,b:2 "))
	assert.Nil(t, splitList(""))
}
