package negotiation

import (
	"fmt"

	"purchase-order-service/internal/models"
)

// Totals is the computed money view of an order.
type Totals struct {
	Subtotal     models.Money `json:"subtotal"`
	ShippingCost models.Money `json:"shipping_cost"`
	Total        models.Money `json:"total"`
}

// EffectiveLineTotal is the amount an item contributes to the subtotal.
// It is derived from the quantity and price pairs, never from the stored
// line totals, so it cannot drift from them.
func EffectiveLineTotal(item *models.OrderItem) (models.Money, error) {
	if item.Status.IsExcluded() {
		return 0, nil
	}
	if item.Status == models.ItemStatusSubstitutionAccepted && item.HasSubstitution() {
		return substituteLineTotal(item)
	}
	if item.HasAdjustment() {
		return adjustedLineTotal(item)
	}
	return item.UnitPrice.Times(item.Quantity)
}

// ComputeTotals recomputes subtotal and total from scratch. It fails with
// models.ErrAmountOverflow when an amount does not fit.
func ComputeTotals(items []models.OrderItem, shipping models.Money) (Totals, error) {
	var subtotal models.Money
	for i := range items {
		line, err := EffectiveLineTotal(&items[i])
		if err != nil {
			return Totals{}, fmt.Errorf("item %s: %w", items[i].ID, err)
		}
		if subtotal, err = subtotal.Plus(line); err != nil {
			return Totals{}, fmt.Errorf("subtotal: %w", err)
		}
	}
	total, err := subtotal.Plus(shipping)
	if err != nil {
		return Totals{}, fmt.Errorf("total: %w", err)
	}
	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        total,
	}, nil
}

// Recalculate refreshes every derived amount on the order in place. On
// error the order is left partially updated and must be discarded.
func Recalculate(o *models.Order) error {
	for i := range o.Items {
		it := &o.Items[i]
		lt, err := it.UnitPrice.Times(it.Quantity)
		if err != nil {
			return fmt.Errorf("item %s: %w", it.ID, err)
		}
		it.LineTotal = lt

		it.SubstituteLineTotal = nil
		if it.HasSubstitution() {
			v, err := substituteLineTotal(it)
			if err != nil {
				return fmt.Errorf("item %s substitute: %w", it.ID, err)
			}
			it.SubstituteLineTotal = &v
		}

		it.AdjustedLineTotal = nil
		if it.HasAdjustment() {
			v, err := adjustedLineTotal(it)
			if err != nil {
				return fmt.Errorf("item %s adjustment: %w", it.ID, err)
			}
			it.AdjustedLineTotal = &v
		}
	}
	t, err := ComputeTotals(o.Items, o.ShippingCost)
	if err != nil {
		return err
	}
	o.Subtotal = t.Subtotal
	o.Total = t.Total
	return nil
}

func substituteLineTotal(item *models.OrderItem) (models.Money, error) {
	if item.SubstituteQuantity == nil || item.SubstituteUnitPrice == nil {
		return 0, nil
	}
	return item.SubstituteUnitPrice.Times(*item.SubstituteQuantity)
}

func adjustedLineTotal(item *models.OrderItem) (models.Money, error) {
	qty := item.Quantity
	if item.AdjustedQuantity != nil {
		qty = *item.AdjustedQuantity
	}
	price := item.UnitPrice
	if item.AdjustedUnitPrice != nil {
		price = *item.AdjustedUnitPrice
	}
	return price.Times(qty)
}

// Verify checks the structural invariants of an order aggregate.
// A failure means the aggregate is corrupt and wraps ErrInconsistentState.
func Verify(o *models.Order) error {
	if !o.Status.IsValid() {
		return fmt.Errorf("%w: order %s has unknown status %q", ErrInconsistentState, o.ID, o.Status)
	}
	var unresolved []string
	for i := range o.Items {
		it := &o.Items[i]
		if !it.Status.IsValid() {
			return fmt.Errorf("%w: item %s has unknown status %q", ErrInconsistentState, it.ID, it.Status)
		}
		if it.HasSubstitution() && it.HasAdjustment() {
			return fmt.Errorf("%w: item %s carries both a substitution and an adjustment", ErrInconsistentState, it.ID)
		}
		if it.HasSubstitution() != (it.SubstituteQuantity != nil && it.SubstituteUnitPrice != nil) {
			return fmt.Errorf("%w: item %s has a partial substitution", ErrInconsistentState, it.ID)
		}
		if it.Status == models.ItemStatusSubstitutionOffered && !it.HasSubstitution() {
			return fmt.Errorf("%w: item %s offers a substitution without details", ErrInconsistentState, it.ID)
		}
		if it.Status.IsAdjusted() && !it.HasAdjustment() {
			return fmt.Errorf("%w: item %s is adjusted without adjustment values", ErrInconsistentState, it.ID)
		}
		if !it.Status.IsResolved() {
			unresolved = append(unresolved, it.ID)
		}
	}
	if o.Status.IsSettled() && len(unresolved) > 0 {
		return fmt.Errorf("%w: order %s is %s with unresolved items %v", ErrInconsistentState, o.ID, o.Status, unresolved)
	}
	t, err := ComputeTotals(o.Items, o.ShippingCost)
	if err != nil {
		return fmt.Errorf("%w: order %s: %v", ErrInconsistentState, o.ID, err)
	}
	if o.Subtotal != t.Subtotal || o.Total != t.Total {
		return fmt.Errorf("%w: order %s totals %s/%s do not match items %s/%s",
			ErrInconsistentState, o.ID, o.Subtotal, o.Total, t.Subtotal, t.Total)
	}
	return nil
}
