package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"purchase-order-service/internal/models"
)

// MemoryStore keeps orders and catalog data in process memory. It has the
// same version semantics as Store and is used with STORE_DRIVER=memory.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*models.Order
	numbers   map[string]string
	products  map[string]models.Product
	inventory map[string]models.Inventory
	processed map[string]models.ProcessedEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]*models.Order),
		numbers:   make(map[string]string),
		products:  make(map[string]models.Product),
		inventory: make(map[string]models.Inventory),
		processed: make(map[string]models.ProcessedEvent),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	if _, ok := m.numbers[order.OrderNumber]; ok {
		return fmt.Errorf("order number %s: %w", order.OrderNumber, ErrDuplicateOrderNumber)
	}
	order.Version = 1
	m.orders[order.ID] = order.Clone()
	m.numbers[order.OrderNumber] = order.ID
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o.Clone(), nil
}

func (m *MemoryStore) SaveOrder(ctx context.Context, order *models.Order, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", order.ID, ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("order %s at version %d: %w", order.ID, expectedVersion, ErrVersionConflict)
	}
	order.Version = expectedVersion + 1
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[models.OrderStatus]bool, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses[s] = true
	}

	orders := []models.Order{}
	for _, o := range m.orders {
		if f.BuyerID != "" && o.BuyerID != f.BuyerID {
			continue
		}
		if f.SupplierID != "" && o.SupplierID != f.SupplierID {
			continue
		}
		if len(statuses) > 0 && !statuses[o.Status] {
			continue
		}
		orders = append(orders, *o.Clone())
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
	if f.Limit > 0 && len(orders) > f.Limit {
		orders = orders[:f.Limit]
	}
	return orders, nil
}

func (m *MemoryStore) UpsertProduct(ctx context.Context, p *models.Product, inv *models.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.products[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	m.products[p.ID] = *p
	m.inventory[p.ID] = models.Inventory{
		ProductID: p.ID,
		Available: inv.Available,
		InStock:   inv.InStock,
		UpdatedAt: now,
	}
	return nil
}

func (m *MemoryStore) ListProducts(ctx context.Context, supplierID string) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := []models.Product{}
	for _, p := range m.products {
		if p.SupplierID == supplierID {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *MemoryStore) GetProductSnapshot(ctx context.Context, productID string) (*models.ProductSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshot(productID)
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return &snap, nil
}

func (m *MemoryStore) GetProductSnapshots(ctx context.Context, productIDs []string) (map[string]models.ProductSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]models.ProductSnapshot, len(productIDs))
	for _, id := range productIDs {
		if snap, ok := m.snapshot(id); ok {
			result[id] = snap
		}
	}
	return result, nil
}

func (m *MemoryStore) snapshot(productID string) (models.ProductSnapshot, bool) {
	p, ok := m.products[productID]
	if !ok {
		return models.ProductSnapshot{}, false
	}
	inv := m.inventory[productID]
	return models.ProductSnapshot{
		ProductID:      p.ID,
		Name:           p.Name,
		SKU:            p.SKU,
		UnitPrice:      p.UnitPrice,
		StockAvailable: inv.Available,
		InStock:        inv.InStock,
		MinOrderQty:    p.MinOrderQty,
	}, true
}

func (m *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.processed[eventID]
	return ok, nil
}

func (m *MemoryStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.processed[eventID]; !ok {
		m.processed[eventID] = models.ProcessedEvent{
			EventID:     eventID,
			EventType:   eventType,
			ProcessedAt: time.Now().UTC(),
		}
	}
	return nil
}
