package redisclient

import (
	"testing"

	"purchase-order-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	snap, err := decodeSnapshot("p1", map[string]string{
		"name":          "Widget",
		"sku":           "W-1",
		"unit_price":    "1250",
		"available":     "40",
		"in_stock":      "true",
		"min_order_qty": "5",
	})
	require.NoError(t, err)
	assert.Equal(t, &models.ProductSnapshot{
		ProductID:      "p1",
		Name:           "Widget",
		SKU:            "W-1",
		UnitPrice:      1250,
		StockAvailable: 40,
		InStock:        true,
		MinOrderQty:    5,
	}, snap)
}

func TestDecodeSnapshotRejectsPartialEntries(t *testing.T) {
	_, err := decodeSnapshot("p1", map[string]string{"name": "Widget", "unit_price": "abc"})
	assert.Error(t, err)

	_, err = decodeSnapshot("p1", map[string]string{
		"unit_price": "1", "available": "1", "in_stock": "false", "min_order_qty": "1",
	})
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "lock:order:42", lockKey("order:42"))
	assert.Equal(t, "product:p1", productKey("p1"))
}
