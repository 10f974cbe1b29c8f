//go:build integration

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(ctx context.Context, t *testing.T) *Store {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("purchase_orders"),
		postgres.WithUsername("app"),
		postgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, runMigrations(connStr))

	s, err := NewStore(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runMigrations(connStr string) error {
	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(filename), "..", "..")
	m, err := migrate.New("file://"+filepath.Join(root, "migrations"), connStr)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func TestPostgresOrderRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s := setupPostgres(ctx, t)

	require.NoError(t, s.UpsertProduct(ctx,
		&models.Product{ID: "p1", SupplierID: "s1", SKU: "W-1", Name: "Widget", UnitPrice: 10000, MinOrderQty: 1},
		&models.Inventory{Available: 50, InStock: true}))
	require.NoError(t, s.UpsertProduct(ctx,
		&models.Product{ID: "p2", SupplierID: "s1", SKU: "G-1", Name: "Gadget", UnitPrice: 5000, MinOrderQty: 1},
		&models.Inventory{Available: 50, InStock: true}))

	snaps, err := s.GetProductSnapshots(ctx, []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	e := negotiation.New()
	buyer := models.Actor{Role: models.ActorBuyer, ID: "b1"}
	supplier := models.Actor{Role: models.ActorSupplier, ID: "s1"}

	tr, err := e.CreateDraft(buyer, negotiation.DraftRequest{
		SupplierID:   "s1",
		ShippingCost: 2500,
		Lines: []negotiation.DraftLine{
			{Product: snaps["p1"], Quantity: 10},
			{Product: snaps["p2"], Quantity: 5},
		},
	})
	require.NoError(t, err)
	order := tr.Order
	require.NoError(t, s.CreateOrder(ctx, order))
	assert.Equal(t, int64(1), order.Version)

	dup := order.Clone()
	dup.ID = "00000000-0000-0000-0000-000000000001"
	dup.Items = nil
	assert.ErrorIs(t, s.CreateOrder(ctx, dup), ErrDuplicateOrderNumber)

	tr, err = e.Submit(order, buyer, snaps)
	require.NoError(t, err)
	tr, err = e.SubstituteItem(tr.Order, supplier, order.Items[0].ID, negotiation.SubstitutionOffer{
		ProductID: "p9", ProductName: "Widget Pro", Quantity: 10, UnitPrice: 12000, Notes: "newer model",
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveOrder(ctx, tr.Order, 1))
	assert.Equal(t, int64(2), tr.Order.Version)

	loaded, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusSubmitted, loaded.Status)
	assert.Equal(t, int64(2), loaded.Version)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, models.ItemStatusSubstitutionOffered, loaded.Items[0].Status)
	require.NotNil(t, loaded.Items[0].SubstituteLineTotal)
	assert.Equal(t, models.Money(120000), *loaded.Items[0].SubstituteLineTotal)
	assert.NoError(t, negotiation.Verify(loaded))

	err = s.SaveOrder(ctx, tr.Order, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = s.GetOrder(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListOrders(ctx, OrderFilter{SupplierID: "s1", Statuses: []models.OrderStatus{models.OrderStatusSubmitted}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 2)

	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypePaymentRecorded))
	seen, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}
