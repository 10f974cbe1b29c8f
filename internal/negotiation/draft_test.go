package negotiation

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"purchase-order-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDraftSnapshotsCatalog(t *testing.T) {
	e := newTestEngine()
	eta := fixedNow.Add(7 * 24 * time.Hour)
	tr, err := e.CreateDraft(buyer, DraftRequest{
		SupplierID:           "supplier-1",
		ShippingCost:         1500,
		DeliveryAddress:      " Dock 4 ",
		ExpectedDeliveryDate: &eta,
		Lines: []DraftLine{
			{Product: product("p1", 1250, 10, 1), Quantity: 4},
			{Product: product("p2", 99, 10, 1), Quantity: 1},
		},
	})
	require.NoError(t, err)
	o := tr.Order

	assert.Equal(t, models.OrderStatusDraft, o.Status)
	assert.Equal(t, "buyer-1", o.BuyerID)
	assert.Equal(t, "Dock 4", *o.DeliveryAddress)
	assert.Regexp(t, regexp.MustCompile(`^PO-20240301-[0-9A-F]{6}$`), o.OrderNumber)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "SKU-p1", o.Items[0].ProductSKU)
	assert.Equal(t, 1, o.Items[0].Position)
	assert.Equal(t, 2, o.Items[1].Position)
	assert.Equal(t, models.Money(5000), o.Items[0].LineTotal)
	assert.Equal(t, models.Money(5099), o.Subtotal)
	assert.Equal(t, models.Money(6599), o.Total)
	assert.Equal(t, models.OrderStatus(""), tr.BeforeStatus)
	assert.Len(t, tr.ChangedItemIDs, 2)
}

func TestCreateDraftValidation(t *testing.T) {
	e := newTestEngine()
	_, err := e.CreateDraft(buyer, DraftRequest{
		Lines: []DraftLine{{Product: product("p1", 100, 10, 1), Quantity: 0}},
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Problems, 2)

	_, err = e.CreateDraft(supplier, DraftRequest{SupplierID: "s"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDraftEditing(t *testing.T) {
	e := newTestEngine()
	o := draftOrder(t, e, 0,
		DraftLine{Product: product("p1", 100, 10, 1), Quantity: 1},
		DraftLine{Product: product("p2", 200, 10, 1), Quantity: 1},
	)

	o = apply(t)(e.AddDraftItem(o, buyer, product("p3", 300, 10, 1), 2))
	assert.Equal(t, models.Money(900), o.Subtotal)

	o = apply(t)(e.SetDraftItemQuantity(o, buyer, o.Items[0].ID, 5))
	assert.Equal(t, models.Money(1300), o.Subtotal)

	tr, err := e.SetDraftItemQuantity(o, buyer, o.Items[0].ID, 5)
	require.NoError(t, err)
	assert.False(t, tr.Changed)

	removed := o.Items[1].ID
	o = apply(t)(e.RemoveDraftItem(o, buyer, removed))
	require.Len(t, o.Items, 2)
	assert.Nil(t, o.Item(removed))
	assert.Equal(t, 2, o.Items[1].Position)
	assert.Equal(t, models.Money(1100), o.Subtotal)

	o = apply(t)(e.SetShippingCost(o, buyer, 250))
	assert.Equal(t, models.Money(1350), o.Total)

	_, err = e.RemoveDraftItem(o, buyer, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitGateIsAllOrNothing(t *testing.T) {
	e := newTestEngine()
	lines := []DraftLine{
		{Product: product("ok", 100, 50, 1), Quantity: 5},
		{Product: product("moq", 100, 50, 10), Quantity: 5},
		{Product: product("short", 100, 3, 1), Quantity: 5},
		{Product: product("gone", 100, 0, 1), Quantity: 5},
		{Product: product("unknown", 100, 50, 1), Quantity: 5},
	}
	o := draftOrder(t, e, 0, lines...)
	catalog := catalogOf(lines)
	delete(catalog, "unknown")
	before := o.Clone()

	_, err := e.Submit(o, buyer, catalog)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Problems, 4)
	assert.Equal(t, o.Items[1].ID, ve.Problems[0].ItemID)
	assert.Contains(t, ve.Problems[0].Reason, "minimum order quantity")
	assert.Contains(t, ve.Problems[1].Reason, "exceeds available stock")
	assert.Equal(t, "product is out of stock", ve.Problems[2].Reason)
	assert.Equal(t, "product not found in catalog", ve.Problems[3].Reason)

	assert.Equal(t, before, o)
	assert.Equal(t, models.OrderStatusDraft, o.Status)
}

func TestSubmitRequiresItems(t *testing.T) {
	e := newTestEngine()
	o := draftOrder(t, e, 0)

	_, err := e.Submit(o, buyer, nil)
	assert.ErrorIs(t, err, ErrValidation)

	o = twoLineOrder(t, e)
	_, err = e.Submit(o, buyer, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOutstandingAndPipeline(t *testing.T) {
	paid := fixedNow
	orders := []models.Order{
		{Status: models.OrderStatusDelivered, Total: 1000},
		{Status: models.OrderStatusCompleted, Total: 2000},
		{Status: models.OrderStatusCompleted, Total: 4000, PaidAt: &paid},
		{Status: models.OrderStatusShipped, Total: 8000},
		{Status: models.OrderStatusSubmitted, Total: 500},
		{Status: models.OrderStatusSubmitted, Total: 700},
	}

	out := OutstandingPayments(orders)
	assert.Equal(t, Outstanding{Orders: 2, Amount: 3000}, out)

	stages := Pipeline(orders)
	require.Len(t, stages, len(models.OrderStatuses))
	byStatus := map[models.OrderStatus]PipelineStage{}
	for _, s := range stages {
		byStatus[s.Status] = s
	}
	assert.Equal(t, PipelineStage{Status: models.OrderStatusSubmitted, Orders: 2, Value: 1200}, byStatus[models.OrderStatusSubmitted])
	assert.Equal(t, 2, byStatus[models.OrderStatusCompleted].Orders)
	assert.Equal(t, 0, byStatus[models.OrderStatusDraft].Orders)
}
