package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"purchase-order-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// OrderFilter narrows ListOrders. Empty fields match everything.
type OrderFilter struct {
	BuyerID    string
	SupplierID string
	Statuses   []models.OrderStatus
	Limit      int
}

const insertOrderQuery = `
	INSERT INTO orders (
		id, order_number, buyer_id, supplier_id, status, status_reason,
		subtotal, shipping_cost, total,
		expected_delivery_date, tracking_number, delivery_address,
		supplier_changes_summary, review_requested_at, paid_at,
		version, created_at, updated_at)
	VALUES (
		:id, :order_number, :buyer_id, :supplier_id, :status, :status_reason,
		:subtotal, :shipping_cost, :total,
		:expected_delivery_date, :tracking_number, :delivery_address,
		:supplier_changes_summary, :review_requested_at, :paid_at,
		:version, :created_at, :updated_at)`

const upsertItemQuery = `
	INSERT INTO order_items (
		id, order_id, position, product_id, product_name, product_sku,
		quantity, unit_price, line_total, status, rejection_reason,
		substitute_product_id, substitute_product_name, substitute_quantity,
		substitute_unit_price, substitute_notes, substitute_line_total,
		adjusted_quantity, adjusted_unit_price, adjustment_reason, adjusted_line_total,
		supplier_item_notes, created_at, updated_at)
	VALUES (
		:id, :order_id, :position, :product_id, :product_name, :product_sku,
		:quantity, :unit_price, :line_total, :status, :rejection_reason,
		:substitute_product_id, :substitute_product_name, :substitute_quantity,
		:substitute_unit_price, :substitute_notes, :substitute_line_total,
		:adjusted_quantity, :adjusted_unit_price, :adjustment_reason, :adjusted_line_total,
		:supplier_item_notes, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		position = EXCLUDED.position,
		quantity = EXCLUDED.quantity,
		unit_price = EXCLUDED.unit_price,
		line_total = EXCLUDED.line_total,
		status = EXCLUDED.status,
		rejection_reason = EXCLUDED.rejection_reason,
		substitute_product_id = EXCLUDED.substitute_product_id,
		substitute_product_name = EXCLUDED.substitute_product_name,
		substitute_quantity = EXCLUDED.substitute_quantity,
		substitute_unit_price = EXCLUDED.substitute_unit_price,
		substitute_notes = EXCLUDED.substitute_notes,
		substitute_line_total = EXCLUDED.substitute_line_total,
		adjusted_quantity = EXCLUDED.adjusted_quantity,
		adjusted_unit_price = EXCLUDED.adjusted_unit_price,
		adjustment_reason = EXCLUDED.adjustment_reason,
		adjusted_line_total = EXCLUDED.adjusted_line_total,
		supplier_item_notes = EXCLUDED.supplier_item_notes,
		updated_at = EXCLUDED.updated_at`

// CreateOrder inserts a new order aggregate at version 1
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order.Version = 1
	if _, err := tx.NamedExecContext(ctx, insertOrderQuery, order); err != nil {
		order.Version = 0
		if isUniqueViolation(err) {
			return fmt.Errorf("order number %s: %w", order.OrderNumber, ErrDuplicateOrderNumber)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := upsertItems(ctx, tx, order.Items); err != nil {
		order.Version = 0
		return err
	}

	if err := tx.Commit(); err != nil {
		order.Version = 0
		return err
	}
	return nil
}

// GetOrder loads an order with its items in display order
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}

	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	order.Items = []models.OrderItem{}
	err = s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return &order, nil
}

// SaveOrder persists the whole aggregate if the stored version still equals
// expectedVersion. On success order.Version is bumped.
func (s *Store) SaveOrder(ctx context.Context, order *models.Order, expectedVersion int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			status = $1, status_reason = $2,
			subtotal = $3, shipping_cost = $4, total = $5,
			expected_delivery_date = $6, tracking_number = $7, delivery_address = $8,
			supplier_changes_summary = $9, review_requested_at = $10, paid_at = $11,
			updated_at = $12, version = version + 1
		WHERE id = $13 AND version = $14`,
		order.Status, order.StatusReason,
		order.Subtotal, order.ShippingCost, order.Total,
		order.ExpectedDeliveryDate, order.TrackingNumber, order.DeliveryAddress,
		order.SupplierChangesSummary, order.ReviewRequestedAt, order.PaidAt,
		order.UpdatedAt, order.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", order.ID); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("order %s: %w", order.ID, ErrNotFound)
		}
		return fmt.Errorf("order %s at version %d: %w", order.ID, expectedVersion, ErrVersionConflict)
	}

	ids := make([]string, len(order.Items))
	for i := range order.Items {
		ids[i] = order.Items[i].ID
	}
	_, err = tx.ExecContext(ctx,
		"DELETE FROM order_items WHERE order_id = $1 AND NOT (id = ANY($2::uuid[]))",
		order.ID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to prune order items: %w", err)
	}

	if err := upsertItems(ctx, tx, order.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	order.Version = expectedVersion + 1
	return nil
}

func upsertItems(ctx context.Context, tx *sqlx.Tx, items []models.OrderItem) error {
	for i := range items {
		if _, err := tx.NamedExecContext(ctx, upsertItemQuery, &items[i]); err != nil {
			return fmt.Errorf("failed to write order item %s: %w", items[i].ID, err)
		}
	}
	return nil
}

// ListOrders returns matching orders, newest first, with their items
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		where = append(where, fmt.Sprintf("buyer_id = $%d", len(args)))
	}
	if f.SupplierID != "" {
		args = append(args, f.SupplierID)
		where = append(where, fmt.Sprintf("supplier_id = $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := "SELECT * FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*models.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		orders[i].Items = []models.OrderItem{}
		byID[orders[i].ID] = &orders[i]
	}

	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position",
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	for _, it := range items {
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return orders, nil
}
