package negotiation

import (
	"errors"
	"fmt"
	"time"

	"purchase-order-service/internal/models"

	"github.com/google/uuid"
)

// Engine applies negotiation operations to in-memory order aggregates.
// It performs no I/O: every operation works on a copy of the order and
// either returns the new state or an error with the input left untouched.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides how order and item ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transition is the outcome of one operation.
type Transition struct {
	Order          *models.Order
	Action         models.Action
	Actor          models.Actor
	BeforeStatus   models.OrderStatus
	AfterStatus    models.OrderStatus
	ChangedItemIDs []string
	AmountChange   models.Money
	At             time.Time
	// Changed is false when the operation was an idempotent no-op.
	// Nothing needs to be persisted or audited in that case.
	Changed bool
}

// AuditRecord builds the audit entry for a changed transition.
func (t *Transition) AuditRecord(eventID string) models.AuditRecord {
	return models.AuditRecord{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeAuditRecord,
			Timestamp: t.At,
		},
		OrderID:      t.Order.ID,
		OrderNumber:  t.Order.OrderNumber,
		ActorRole:    t.Actor.Role,
		ActorID:      t.Actor.ID,
		Action:       t.Action,
		BeforeStatus: t.BeforeStatus,
		AfterStatus:  t.AfterStatus,
		AmountChange: t.AmountChange,
		ItemIDs:      t.ChangedItemIDs,
	}
}

// Event builds the outbound notification for a changed transition.
func (t *Transition) Event(eventID string) models.OrderTransitionedEvent {
	return models.OrderTransitionedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeOrderTransitioned,
			Timestamp: t.At,
		},
		OrderID:        t.Order.ID,
		OrderNumber:    t.Order.OrderNumber,
		BuyerID:        t.Order.BuyerID,
		SupplierID:     t.Order.SupplierID,
		Action:         t.Action,
		ActorRole:      t.Actor.Role,
		BeforeStatus:   t.BeforeStatus,
		AfterStatus:    t.AfterStatus,
		ChangedItemIDs: t.ChangedItemIDs,
		Total:          t.Order.Total,
		Version:        t.Order.Version,
	}
}

// mutation tracks one in-flight operation against a working copy.
type mutation struct {
	before  *models.Order
	order   *models.Order
	action  models.Action
	actor   models.Actor
	at      time.Time
	changed []string
}

func (e *Engine) begin(o *models.Order, action models.Action, actor models.Actor) (*mutation, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	if err := authorize(action, actor); err != nil {
		return nil, err
	}
	return &mutation{
		before: o,
		order:  o.Clone(),
		action: action,
		actor:  actor,
		at:     e.now(),
	}, nil
}

func (m *mutation) item(itemID string) (*models.OrderItem, error) {
	it := m.order.Item(itemID)
	if it == nil {
		return nil, itemNotFound(m.order.ID, itemID)
	}
	return it, nil
}

func (m *mutation) touch(it *models.OrderItem) {
	it.UpdatedAt = m.at
	for _, id := range m.changed {
		if id == it.ID {
			return
		}
	}
	m.changed = append(m.changed, it.ID)
}

func (m *mutation) commit() (*Transition, error) {
	if err := Recalculate(m.order); err != nil {
		if errors.Is(err, models.ErrAmountOverflow) {
			return nil, invalid("order amounts exceed the supported range")
		}
		return nil, err
	}
	m.order.UpdatedAt = m.at
	if err := Verify(m.order); err != nil {
		return nil, err
	}
	return &Transition{
		Order:          m.order,
		Action:         m.action,
		Actor:          m.actor,
		BeforeStatus:   m.before.Status,
		AfterStatus:    m.order.Status,
		ChangedItemIDs: m.changed,
		AmountChange:   m.order.Total - m.before.Total,
		At:             m.at,
		Changed:        true,
	}, nil
}

func (m *mutation) noop() *Transition {
	return &Transition{
		Order:        m.before.Clone(),
		Action:       m.action,
		Actor:        m.actor,
		BeforeStatus: m.before.Status,
		AfterStatus:  m.before.Status,
		At:           m.at,
	}
}

// permissions lists which role may perform each action.
var permissions = map[models.Action][]models.ActorRole{
	models.ActionCreateDraft:        {models.ActorBuyer},
	models.ActionAddDraftItem:       {models.ActorBuyer},
	models.ActionSetDraftQuantity:   {models.ActorBuyer},
	models.ActionRemoveDraftItem:    {models.ActorBuyer},
	models.ActionSetShippingCost:    {models.ActorBuyer, models.ActorSupplier},
	models.ActionSubmit:             {models.ActorBuyer},
	models.ActionAcceptItem:         {models.ActorSupplier},
	models.ActionRejectItem:         {models.ActorSupplier},
	models.ActionSubstituteItem:     {models.ActorSupplier},
	models.ActionAdjustItem:         {models.ActorSupplier},
	models.ActionAddItemNote:        {models.ActorSupplier},
	models.ActionAcceptSubstitution: {models.ActorBuyer},
	models.ActionRejectSubstitution: {models.ActorBuyer},
	models.ActionConfirm:            {models.ActorSupplier},
	models.ActionReject:             {models.ActorSupplier},
	models.ActionSendForReview:      {models.ActorSupplier},
	models.ActionApproveChanges:     {models.ActorBuyer},
	models.ActionRejectChanges:      {models.ActorBuyer},
	models.ActionStartProcessing:    {models.ActorSupplier},
	models.ActionShip:               {models.ActorSupplier},
	models.ActionConfirmDelivery:    {models.ActorBuyer},
	models.ActionMarkPaid:           {models.ActorBuyer, models.ActorSupplier},
	models.ActionComplete:           {models.ActorBuyer, models.ActorSupplier},
	models.ActionCancel:             {models.ActorBuyer, models.ActorSupplier},
}

func authorize(action models.Action, actor models.Actor) error {
	if !actor.Role.IsValid() {
		return invalid(fmt.Sprintf("unknown actor role %q", actor.Role))
	}
	for _, r := range permissions[action] {
		if r == actor.Role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not %s", ErrInvalidTransition, actor.Role, action)
}

// orderTransitions is the order-level state table, keyed by action.
var orderTransitions = map[models.Action]map[models.OrderStatus]models.OrderStatus{
	models.ActionSubmit: {
		models.OrderStatusDraft: models.OrderStatusSubmitted,
	},
	models.ActionConfirm: {
		models.OrderStatusSubmitted: models.OrderStatusConfirmed,
	},
	models.ActionReject: {
		models.OrderStatusSubmitted: models.OrderStatusRejected,
	},
	models.ActionSendForReview: {
		models.OrderStatusSubmitted: models.OrderStatusPendingBuyerReview,
	},
	models.ActionApproveChanges: {
		models.OrderStatusPendingBuyerReview: models.OrderStatusConfirmed,
	},
	models.ActionRejectChanges: {
		models.OrderStatusPendingBuyerReview: models.OrderStatusRejected,
	},
	models.ActionStartProcessing: {
		models.OrderStatusConfirmed: models.OrderStatusProcessing,
	},
	models.ActionShip: {
		models.OrderStatusConfirmed:  models.OrderStatusShipped,
		models.OrderStatusProcessing: models.OrderStatusShipped,
	},
	models.ActionConfirmDelivery: {
		models.OrderStatusShipped: models.OrderStatusDelivered,
	},
	models.ActionMarkPaid: {
		models.OrderStatusDelivered: models.OrderStatusDelivered,
		models.OrderStatusCompleted: models.OrderStatusCompleted,
	},
	models.ActionComplete: {
		models.OrderStatusDelivered: models.OrderStatusCompleted,
	},
	models.ActionCancel: {
		models.OrderStatusSubmitted:          models.OrderStatusCancelled,
		models.OrderStatusPendingBuyerReview: models.OrderStatusCancelled,
		models.OrderStatusConfirmed:          models.OrderStatusCancelled,
		models.OrderStatusProcessing:         models.OrderStatusCancelled,
	},
}

// NextStatus reports the order status an action leads to from the given
// status, or an ErrInvalidTransition error.
func NextStatus(action models.Action, from models.OrderStatus) (models.OrderStatus, error) {
	to, ok := orderTransitions[action][from]
	if !ok {
		return "", transitionError(action, from)
	}
	return to, nil
}

// requireEditable guards the supplier's per-item responses.
func requireEditable(o *models.Order, action models.Action) error {
	if !o.Status.IsEditable() {
		return transitionError(action, o.Status)
	}
	return nil
}
