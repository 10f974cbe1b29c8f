package negotiation

import (
	"strings"

	"purchase-order-service/internal/models"
)

// DefaultSubstitutionRejectionReason is recorded when the buyer declines a
// substitute without giving a reason.
const DefaultSubstitutionRejectionReason = "substitution declined by buyer"

// SubstitutionOffer is the supplier's proposed replacement for a line.
type SubstitutionOffer struct {
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int          `json:"quantity"`
	UnitPrice   models.Money `json:"unit_price"`
	Notes       string       `json:"notes"`
}

// Adjustment is the supplier's proposed quantity and/or price change.
type Adjustment struct {
	Quantity  *int          `json:"quantity,omitempty"`
	UnitPrice *models.Money `json:"unit_price,omitempty"`
	Reason    string        `json:"reason"`
}

// AcceptItem marks a line accepted as submitted. Accepting an adjusted
// line withdraws the adjustment. Accepting an accepted line is a no-op.
func (e *Engine) AcceptItem(o *models.Order, actor models.Actor, itemID string) (*Transition, error) {
	m, err := e.begin(o, models.ActionAcceptItem, actor)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(m.order, m.action); err != nil {
		return nil, err
	}
	it, err := m.item(itemID)
	if err != nil {
		return nil, err
	}
	if it.Status == models.ItemStatusAccepted && !it.HasAdjustment() {
		return m.noop(), nil
	}
	if !it.Status.CanTransitionTo(models.ItemStatusAccepted) {
		return nil, itemTransitionError(m.action, it)
	}
	it.Status = models.ItemStatusAccepted
	it.RejectionReason = nil
	it.ClearAdjustment()
	m.touch(it)
	return m.commit()
}

// RejectItem declines a line. Any open substitution or adjustment is dropped.
func (e *Engine) RejectItem(o *models.Order, actor models.Actor, itemID, reason string) (*Transition, error) {
	m, err := e.begin(o, models.ActionRejectItem, actor)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(m.order, m.action); err != nil {
		return nil, err
	}
	it, err := m.item(itemID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalidItem(it, "rejection reason is required")
	}
	if !it.Status.CanTransitionTo(models.ItemStatusRejected) {
		return nil, itemTransitionError(m.action, it)
	}
	if it.Status == models.ItemStatusRejected && it.RejectionReason != nil && *it.RejectionReason == reason {
		return m.noop(), nil
	}
	it.Status = models.ItemStatusRejected
	it.RejectionReason = &reason
	it.ClearSubstitution()
	it.ClearAdjustment()
	m.touch(it)
	return m.commit()
}

// SubstituteItem offers a different product in place of a line. A newer
// offer replaces an older one and any adjustment is dropped.
func (e *Engine) SubstituteItem(o *models.Order, actor models.Actor, itemID string, offer SubstitutionOffer) (*Transition, error) {
	m, err := e.begin(o, models.ActionSubstituteItem, actor)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(m.order, m.action); err != nil {
		return nil, err
	}
	it, err := m.item(itemID)
	if err != nil {
		return nil, err
	}

	offer.ProductID = strings.TrimSpace(offer.ProductID)
	offer.ProductName = strings.TrimSpace(offer.ProductName)
	var problems []Problem
	if offer.ProductID == "" {
		problems = append(problems, itemProblem(it, "substitute product is required"))
	} else if offer.ProductID == it.ProductID {
		problems = append(problems, itemProblem(it, "substitute product must differ from the ordered product"))
	}
	if offer.Quantity < 1 {
		problems = append(problems, itemProblem(it, "substitute quantity must be at least 1"))
	}
	if offer.UnitPrice < 0 {
		problems = append(problems, itemProblem(it, "substitute unit price must not be negative"))
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	if !it.Status.CanTransitionTo(models.ItemStatusSubstitutionOffered) {
		return nil, itemTransitionError(m.action, it)
	}

	it.Status = models.ItemStatusSubstitutionOffered
	it.RejectionReason = nil
	it.ClearAdjustment()
	it.SubstituteProductID = &offer.ProductID
	it.SubstituteProductName = nil
	if offer.ProductName != "" {
		it.SubstituteProductName = &offer.ProductName
	}
	it.SubstituteQuantity = &offer.Quantity
	it.SubstituteUnitPrice = &offer.UnitPrice
	it.SubstituteNotes = &offer.Notes
	m.touch(it)
	return m.commit()
}

// AdjustItem proposes a new quantity and/or unit price for a line. Any
// substitution is dropped. A price change marks the line price_adjusted,
// a quantity-only change marks it quantity_adjusted.
func (e *Engine) AdjustItem(o *models.Order, actor models.Actor, itemID string, adj Adjustment) (*Transition, error) {
	m, err := e.begin(o, models.ActionAdjustItem, actor)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(m.order, m.action); err != nil {
		return nil, err
	}
	it, err := m.item(itemID)
	if err != nil {
		return nil, err
	}

	var problems []Problem
	if adj.Quantity == nil && adj.UnitPrice == nil {
		problems = append(problems, itemProblem(it, "adjustment needs a quantity or a unit price"))
	}
	if adj.Quantity != nil && *adj.Quantity < 1 {
		problems = append(problems, itemProblem(it, "adjusted quantity must be at least 1"))
	}
	if adj.UnitPrice != nil && *adj.UnitPrice < 0 {
		problems = append(problems, itemProblem(it, "adjusted unit price must not be negative"))
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	next := models.ItemStatusQuantityAdjusted
	if adj.UnitPrice != nil {
		next = models.ItemStatusPriceAdjusted
	}
	if !it.Status.CanTransitionTo(next) {
		return nil, itemTransitionError(m.action, it)
	}

	it.Status = next
	it.RejectionReason = nil
	it.ClearSubstitution()
	it.ClearAdjustment()
	if adj.Quantity != nil {
		q := *adj.Quantity
		it.AdjustedQuantity = &q
	}
	if adj.UnitPrice != nil {
		p := *adj.UnitPrice
		it.AdjustedUnitPrice = &p
	}
	if r := strings.TrimSpace(adj.Reason); r != "" {
		it.AdjustmentReason = &r
	}
	m.touch(it)
	return m.commit()
}

// AddItemNote sets the supplier's free-text note on a line. The item
// status is untouched.
func (e *Engine) AddItemNote(o *models.Order, actor models.Actor, itemID, note string) (*Transition, error) {
	m, err := e.begin(o, models.ActionAddItemNote, actor)
	if err != nil {
		return nil, err
	}
	if m.order.Status.IsTerminal() {
		return nil, transitionError(m.action, m.order.Status)
	}
	it, err := m.item(itemID)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, invalidItem(it, "note must not be empty")
	}
	if it.SupplierItemNotes != nil && *it.SupplierItemNotes == note {
		return m.noop(), nil
	}
	it.SupplierItemNotes = &note
	m.touch(it)
	return m.commit()
}

// AcceptSubstitution records the buyer taking the offered substitute.
func (e *Engine) AcceptSubstitution(o *models.Order, actor models.Actor, itemID string) (*Transition, error) {
	return e.decideSubstitution(o, actor, models.ActionAcceptSubstitution, itemID, "")
}

// RejectSubstitution records the buyer declining the offered substitute.
// The line is then excluded from the order.
func (e *Engine) RejectSubstitution(o *models.Order, actor models.Actor, itemID, reason string) (*Transition, error) {
	return e.decideSubstitution(o, actor, models.ActionRejectSubstitution, itemID, reason)
}

func (e *Engine) decideSubstitution(o *models.Order, actor models.Actor, action models.Action, itemID, reason string) (*Transition, error) {
	m, err := e.begin(o, action, actor)
	if err != nil {
		return nil, err
	}
	if m.order.Status != models.OrderStatusPendingBuyerReview {
		return nil, transitionError(action, m.order.Status)
	}
	it, err := m.item(itemID)
	if err != nil {
		return nil, err
	}
	accept := action == models.ActionAcceptSubstitution
	if err := applyDecision(it, accept, reason); err != nil {
		if err == errAlreadyDecided {
			return m.noop(), nil
		}
		return nil, err
	}
	m.touch(it)
	return m.commit()
}
