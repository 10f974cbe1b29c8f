package negotiation

import (
	"fmt"
	"strings"
	"time"

	"purchase-order-service/internal/models"

	"github.com/google/uuid"
)

// DraftLine is a requested product resolved against the catalog.
type DraftLine struct {
	Product  models.ProductSnapshot
	Quantity int
}

// DraftRequest describes a new order. The buyer is the acting principal.
type DraftRequest struct {
	SupplierID           string
	Lines                []DraftLine
	ShippingCost         models.Money
	DeliveryAddress      string
	ExpectedDeliveryDate *time.Time
}

// NewOrderNumber formats a human-facing order number for the given day.
func NewOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("PO-%s-%s", at.UTC().Format("20060102"), suffix)
}

// CreateDraft builds a new draft order owned by the acting buyer. Product
// name, SKU and unit price are copied from the snapshots.
func (e *Engine) CreateDraft(actor models.Actor, req DraftRequest) (*Transition, error) {
	if err := authorize(models.ActionCreateDraft, actor); err != nil {
		return nil, err
	}
	var problems []Problem
	if strings.TrimSpace(actor.ID) == "" {
		problems = append(problems, Problem{Reason: "buyer id is required"})
	}
	if strings.TrimSpace(req.SupplierID) == "" {
		problems = append(problems, Problem{Reason: "supplier id is required"})
	}
	if req.ShippingCost < 0 {
		problems = append(problems, Problem{Reason: "shipping cost must not be negative"})
	}
	for _, l := range req.Lines {
		problems = append(problems, lineProblems(l.Product, l.Quantity)...)
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	at := e.now()
	o := &models.Order{
		ID:           e.newID(),
		OrderNumber:  NewOrderNumber(at),
		BuyerID:      actor.ID,
		SupplierID:   strings.TrimSpace(req.SupplierID),
		Status:       models.OrderStatusDraft,
		ShippingCost: req.ShippingCost,
		CreatedAt:    at,
		UpdatedAt:    at,
		Items:        []models.OrderItem{},
	}
	if a := strings.TrimSpace(req.DeliveryAddress); a != "" {
		o.DeliveryAddress = &a
	}
	if req.ExpectedDeliveryDate != nil {
		d := *req.ExpectedDeliveryDate
		o.ExpectedDeliveryDate = &d
	}

	m := &mutation{
		before: &models.Order{},
		order:  o,
		action: models.ActionCreateDraft,
		actor:  actor,
		at:     at,
	}
	for _, l := range req.Lines {
		m.addItem(e.newID(), l.Product, l.Quantity)
	}
	return m.commit()
}

func lineProblems(p models.ProductSnapshot, qty int) []Problem {
	var problems []Problem
	if strings.TrimSpace(p.ProductID) == "" {
		problems = append(problems, Problem{Reason: "product id is required"})
	}
	if qty < 1 {
		problems = append(problems, Problem{ProductName: p.Name, Reason: "quantity must be at least 1"})
	}
	if p.UnitPrice < 0 {
		problems = append(problems, Problem{ProductName: p.Name, Reason: "unit price must not be negative"})
	}
	return problems
}

func (m *mutation) addItem(id string, p models.ProductSnapshot, qty int) {
	m.order.Items = append(m.order.Items, models.OrderItem{
		ID:          id,
		OrderID:     m.order.ID,
		Position:    len(m.order.Items) + 1,
		ProductID:   p.ProductID,
		ProductName: p.Name,
		ProductSKU:  p.SKU,
		Quantity:    qty,
		UnitPrice:   p.UnitPrice,
		Status:      models.ItemStatusPending,
		CreatedAt:   m.at,
	})
	m.touch(&m.order.Items[len(m.order.Items)-1])
}

func (m *mutation) requireDraft() error {
	if m.order.Status != models.OrderStatusDraft {
		return transitionError(m.action, m.order.Status)
	}
	return nil
}

// AddDraftItem appends a line to a draft order.
func (e *Engine) AddDraftItem(o *models.Order, actor models.Actor, p models.ProductSnapshot, qty int) (*Transition, error) {
	m, err := e.begin(o, models.ActionAddDraftItem, actor)
	if err != nil {
		return nil, err
	}
	if err := m.requireDraft(); err != nil {
		return nil, err
	}
	if problems := lineProblems(p, qty); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	m.addItem(e.newID(), p, qty)
	return m.commit()
}

// SetDraftItemQuantity changes the requested quantity of a draft line.
func (e *Engine) SetDraftItemQuantity(o *models.Order, actor models.Actor, itemID string, qty int) (*Transition, error) {
	m, err := e.begin(o, models.ActionSetDraftQuantity, actor)
	if err != nil {
		return nil, err
	}
	if err := m.requireDraft(); err != nil {
		return nil, err
	}
	it, err := m.item(itemID)
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, invalidItem(it, "quantity must be at least 1")
	}
	if it.Quantity == qty {
		return m.noop(), nil
	}
	it.Quantity = qty
	m.touch(it)
	return m.commit()
}

// RemoveDraftItem drops a line from a draft order and renumbers the rest.
func (e *Engine) RemoveDraftItem(o *models.Order, actor models.Actor, itemID string) (*Transition, error) {
	m, err := e.begin(o, models.ActionRemoveDraftItem, actor)
	if err != nil {
		return nil, err
	}
	if err := m.requireDraft(); err != nil {
		return nil, err
	}
	if _, err := m.item(itemID); err != nil {
		return nil, err
	}
	kept := m.order.Items[:0]
	for _, it := range m.order.Items {
		if it.ID == itemID {
			continue
		}
		it.Position = len(kept) + 1
		kept = append(kept, it)
	}
	m.order.Items = kept
	m.changed = append(m.changed, itemID)
	return m.commit()
}

// SetShippingCost replaces the shipping cost while the order is still
// negotiable.
func (e *Engine) SetShippingCost(o *models.Order, actor models.Actor, cost models.Money) (*Transition, error) {
	m, err := e.begin(o, models.ActionSetShippingCost, actor)
	if err != nil {
		return nil, err
	}
	if m.order.Status != models.OrderStatusDraft && !m.order.Status.IsEditable() {
		return nil, transitionError(m.action, m.order.Status)
	}
	if cost < 0 {
		return nil, invalid("shipping cost must not be negative")
	}
	if m.order.ShippingCost == cost {
		return m.noop(), nil
	}
	m.order.ShippingCost = cost
	return m.commit()
}

// Submit sends a draft to the supplier once every item passes the stock
// and minimum-quantity gate. A single failing item fails the whole
// submission and the order stays a draft.
func (e *Engine) Submit(o *models.Order, actor models.Actor, snapshots map[string]models.ProductSnapshot) (*Transition, error) {
	m, err := e.begin(o, models.ActionSubmit, actor)
	if err != nil {
		return nil, err
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	if len(m.order.Items) == 0 {
		return nil, invalid("order has no items")
	}
	if problems := CheckAvailability(m.order.Items, snapshots); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	for i := range m.order.Items {
		it := &m.order.Items[i]
		it.Status = models.ItemStatusPending
		m.touch(it)
	}
	return m.commit()
}
