package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"purchase-order-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrVersionConflict      = errors.New("version conflict")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

const pgErrUniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const snapshotQuery = `
	SELECT p.id, p.name, p.sku, p.unit_price, p.min_order_qty,
	       COALESCE(i.available, 0) AS available,
	       COALESCE(i.in_stock, FALSE) AS in_stock
	FROM products p
	LEFT JOIN inventory i ON i.product_id = p.id`

// GetProductSnapshot returns the catalog view of one product
func (s *Store) GetProductSnapshot(ctx context.Context, productID string) (*models.ProductSnapshot, error) {
	var snap models.ProductSnapshot
	err := s.db.GetContext(ctx, &snap, snapshotQuery+" WHERE p.id = $1", productID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetProductSnapshots returns snapshots keyed by product id. Unknown ids
// are simply absent from the result.
func (s *Store) GetProductSnapshots(ctx context.Context, productIDs []string) (map[string]models.ProductSnapshot, error) {
	result := make(map[string]models.ProductSnapshot, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	var snaps []models.ProductSnapshot
	err := s.db.SelectContext(ctx, &snaps, snapshotQuery+" WHERE p.id = ANY($1)", pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load product snapshots: %w", err)
	}
	for _, snap := range snaps {
		result[snap.ProductID] = snap
	}
	return result, nil
}

// ListProducts returns a supplier's catalog
func (s *Store) ListProducts(ctx context.Context, supplierID string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE supplier_id = $1 ORDER BY name", supplierID)
	return products, err
}

// UpsertProduct creates or updates a product together with its stock level
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product, inv *models.Inventory) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, supplier_id, sku, name, unit_price, min_order_qty)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			supplier_id = EXCLUDED.supplier_id,
			sku = EXCLUDED.sku,
			name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price,
			min_order_qty = EXCLUDED.min_order_qty`,
		p.ID, p.SupplierID, p.SKU, p.Name, p.UnitPrice, p.MinOrderQty)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (product_id, available, in_stock, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id) DO UPDATE SET
			available = EXCLUDED.available,
			in_stock = EXCLUDED.in_stock,
			updated_at = NOW()`,
		p.ID, inv.Available, inv.InStock)
	if err != nil {
		return fmt.Errorf("failed to upsert inventory: %w", err)
	}

	return tx.Commit()
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgErrUniqueViolation
}
