package negotiation

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"purchase-order-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(v models.Money) *models.Money { return &v }

func intp(v int) *int { return &v }

func TestEffectiveLineTotal(t *testing.T) {
	base := models.OrderItem{Quantity: 10, UnitPrice: 10000}

	tests := []struct {
		name string
		edit func(it *models.OrderItem)
		want models.Money
	}{
		{"pending", func(it *models.OrderItem) {}, 100000},
		{"rejected", func(it *models.OrderItem) { it.Status = models.ItemStatusRejected }, 0},
		{"offered substitute not counted yet", func(it *models.OrderItem) {
			it.Status = models.ItemStatusSubstitutionOffered
			it.SubstituteProductID = new(string)
			it.SubstituteQuantity = intp(3)
			it.SubstituteUnitPrice = money(500)
		}, 100000},
		{"accepted substitute", func(it *models.OrderItem) {
			it.Status = models.ItemStatusSubstitutionAccepted
			it.SubstituteProductID = new(string)
			it.SubstituteQuantity = intp(3)
			it.SubstituteUnitPrice = money(500)
		}, 1500},
		{"rejected substitute", func(it *models.OrderItem) {
			it.Status = models.ItemStatusSubstitutionRejected
			it.SubstituteProductID = new(string)
			it.SubstituteQuantity = intp(3)
			it.SubstituteUnitPrice = money(500)
		}, 0},
		{"quantity only", func(it *models.OrderItem) {
			it.Status = models.ItemStatusQuantityAdjusted
			it.AdjustedQuantity = intp(8)
		}, 80000},
		{"price only", func(it *models.OrderItem) {
			it.Status = models.ItemStatusPriceAdjusted
			it.AdjustedUnitPrice = money(9999)
		}, 99990},
		{"approved adjustment", func(it *models.OrderItem) {
			it.Status = models.ItemStatusAccepted
			it.AdjustedQuantity = intp(2)
			it.AdjustedUnitPrice = money(1)
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := base
			it.Status = models.ItemStatusPending
			tt.edit(&it)
			got, err := EffectiveLineTotal(&it)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeTotalsAddsShipping(t *testing.T) {
	items := []models.OrderItem{
		{Quantity: 3, UnitPrice: 333, Status: models.ItemStatusAccepted},
		{Quantity: 1, UnitPrice: 1, Status: models.ItemStatusRejected},
	}
	got, err := ComputeTotals(items, 1050)
	require.NoError(t, err)
	assert.Equal(t, Totals{Subtotal: 999, ShippingCost: 1050, Total: 2049}, got)
}

func TestComputeTotalsReportsOverflow(t *testing.T) {
	_, err := ComputeTotals([]models.OrderItem{
		{ID: "i1", Quantity: 1 << 30, UnitPrice: 1 << 40, Status: models.ItemStatusAccepted},
	}, 0)
	assert.ErrorIs(t, err, models.ErrAmountOverflow)

	_, err = ComputeTotals([]models.OrderItem{
		{ID: "i1", Quantity: 1, UnitPrice: models.MaxMoney, Status: models.ItemStatusAccepted},
	}, 1)
	assert.ErrorIs(t, err, models.ErrAmountOverflow)
}

func TestAmountsOutOfRangeAreRejected(t *testing.T) {
	e := newTestEngine()

	_, err := e.CreateDraft(buyer, DraftRequest{
		SupplierID: "supplier-1",
		Lines:      []DraftLine{{Product: product("p1", 1<<40, 1<<31, 1), Quantity: 1 << 30}},
	})
	require.ErrorIs(t, err, ErrValidation)

	o := twoLineOrder(t, e)
	before := o.Clone()
	huge := models.MaxMoney / 2
	_, err = e.AdjustItem(o, supplier, o.Items[0].ID, Adjustment{UnitPrice: &huge})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, before, o)

	_, err = e.SubstituteItem(o, supplier, o.Items[1].ID, SubstitutionOffer{ProductID: "p9", Quantity: 3, UnitPrice: huge})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, before, o)

	_, err = e.SetShippingCost(o, supplier, models.MaxMoney)
	require.ErrorIs(t, err, ErrValidation)
}

func TestVerifyDetectsDrift(t *testing.T) {
	e := newTestEngine()
	o := twoLineOrder(t, e)
	require.NoError(t, Verify(o))

	o.Total++
	assert.ErrorIs(t, Verify(o), ErrInconsistentState)

	o = twoLineOrder(t, e)
	o.Status = models.OrderStatusConfirmed
	assert.ErrorIs(t, Verify(o), ErrInconsistentState)
}

// randomStep applies one randomly chosen operation. Illegal operations are
// expected to fail without touching the order.
func randomStep(t *testing.T, e *Engine, r *rand.Rand, o *models.Order) *models.Order {
	t.Helper()
	item := o.Items[r.Intn(len(o.Items))].ID
	qty := 1 + r.Intn(20)
	price := models.Money(r.Intn(50000))
	decisions := map[string]SubstitutionDecision{}
	for _, it := range o.Items {
		if it.Status == models.ItemStatusSubstitutionOffered && r.Intn(4) > 0 {
			d := DecisionAccept
			if r.Intn(2) == 0 {
				d = DecisionReject
			}
			decisions[it.ID] = SubstitutionDecision{Decision: d}
		}
	}

	ops := []func() (*Transition, error){
		func() (*Transition, error) { return e.AcceptItem(o, supplier, item) },
		func() (*Transition, error) { return e.RejectItem(o, supplier, item, "no") },
		func() (*Transition, error) {
			return e.SubstituteItem(o, supplier, item, SubstitutionOffer{ProductID: fmt.Sprintf("alt-%d", qty), Quantity: qty, UnitPrice: price})
		},
		func() (*Transition, error) { return e.AdjustItem(o, supplier, item, Adjustment{Quantity: &qty}) },
		func() (*Transition, error) { return e.AdjustItem(o, supplier, item, Adjustment{UnitPrice: &price}) },
		func() (*Transition, error) { return e.AddItemNote(o, supplier, item, "note") },
		func() (*Transition, error) { return e.AcceptSubstitution(o, buyer, item) },
		func() (*Transition, error) { return e.RejectSubstitution(o, buyer, item, "") },
		func() (*Transition, error) { return e.SetShippingCost(o, supplier, price) },
		func() (*Transition, error) { return e.Confirm(o, supplier) },
		func() (*Transition, error) { return e.SendForReview(o, supplier, "") },
		func() (*Transition, error) { return e.ApproveChanges(o, buyer, decisions) },
		func() (*Transition, error) { return e.StartProcessing(o, supplier) },
		func() (*Transition, error) { return e.Ship(o, supplier, Shipment{}) },
		func() (*Transition, error) { return e.ConfirmDelivery(o, buyer) },
		func() (*Transition, error) { return e.MarkPaid(o, buyer, time.Time{}) },
		func() (*Transition, error) { return e.Complete(o, supplier) },
	}
	// Order-ending operations are only offered occasionally.
	if r.Intn(40) == 0 {
		ops = append(ops,
			func() (*Transition, error) { return e.Cancel(o, buyer, "") },
			func() (*Transition, error) { return e.RejectChanges(o, buyer, "no") },
			func() (*Transition, error) { return e.Reject(o, supplier, "no") },
		)
	}

	before := o.Clone()
	tr, err := ops[r.Intn(len(ops))]()
	if err != nil {
		assert.Equal(t, before, o)
		if errors.Is(err, ErrInconsistentState) {
			open := false
			for _, it := range o.Items {
				open = open || it.Status == models.ItemStatusSubstitutionOffered
			}
			assert.True(t, open, "inconsistency reported without an undecided offer")
		}
		return o
	}
	return tr.Order
}

func TestRandomLegalSequencesKeepInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	e := newTestEngine()

	for run := 0; run < 200; run++ {
		n := 1 + r.Intn(4)
		lines := make([]DraftLine, n)
		for i := range lines {
			lines[i] = DraftLine{
				Product:  product(fmt.Sprintf("p%d", i), models.Money(100+r.Intn(100000)), 1000, 1),
				Quantity: 1 + r.Intn(50),
			}
		}
		o := submittedOrder(t, e, models.Money(r.Intn(5000)), lines...)

		for step := 0; step < 60; step++ {
			o = randomStep(t, e, r, o)

			require.NoError(t, Verify(o))
			tot, err := ComputeTotals(o.Items, o.ShippingCost)
			require.NoError(t, err)
			require.Equal(t, tot.Total, o.Total)
			require.Equal(t, o.Subtotal+o.ShippingCost, o.Total)
			for _, it := range o.Items {
				require.False(t, it.HasSubstitution() && it.HasAdjustment(), "item %s", it.ID)
				if o.Status.IsSettled() {
					require.True(t, it.Status.IsResolved(), "order %s item %s is %s", o.Status, it.ID, it.Status)
				}
			}
		}
	}
}
