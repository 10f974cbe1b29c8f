package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/store"
	"purchase-order-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderRepository loads and saves whole order aggregates.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order, expectedVersion int64) error
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
}

// Catalog resolves product snapshots.
type Catalog interface {
	GetProductSnapshot(ctx context.Context, productID string) (*models.ProductSnapshot, error)
	GetProductSnapshots(ctx context.Context, productIDs []string) (map[string]models.ProductSnapshot, error)
}

// EventPublisher receives the audit record and notification of every
// persisted transition.
type EventPublisher interface {
	PublishAudit(ctx context.Context, record *models.AuditRecord) error
	PublishOrderTransitioned(ctx context.Context, event *models.OrderTransitionedEvent) error
}

// OrderService runs engine operations against stored orders. Each call
// takes the order lock, loads the aggregate, applies one operation, saves
// it with a version check and then publishes the outcome.
type OrderService struct {
	repo            OrderRepository
	catalog         Catalog
	locker          Locker
	publisher       EventPublisher
	engine          *negotiation.Engine
	bulkConcurrency int
	logger          *zap.Logger
}

type Option func(*OrderService)

// WithEngine replaces the default engine, e.g. to pin the clock in tests.
func WithEngine(e *negotiation.Engine) Option {
	return func(s *OrderService) { s.engine = e }
}

// WithBulkConcurrency bounds how many orders a bulk call works on at once.
func WithBulkConcurrency(n int) Option {
	return func(s *OrderService) {
		if n > 0 {
			s.bulkConcurrency = n
		}
	}
}

// NewOrderService creates a new order service. publisher may be nil.
func NewOrderService(
	repo OrderRepository,
	catalog Catalog,
	locker Locker,
	publisher EventPublisher,
	opts ...Option,
) *OrderService {
	s := &OrderService{
		repo:            repo,
		catalog:         catalog,
		locker:          locker,
		publisher:       publisher,
		engine:          negotiation.New(),
		bulkConcurrency: 8,
		logger:          util.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrderRef names the order to act on. A non-zero ExpectedVersion makes the
// call fail with ErrConcurrentModification when the stored order has moved on.
type OrderRef struct {
	ID              string
	ExpectedVersion int64
}

// LineRequest is one requested product of a new draft.
type LineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// CreateDraftRequest represents a request to create a draft order
type CreateDraftRequest struct {
	SupplierID           string        `json:"supplier_id" binding:"required"`
	Items                []LineRequest `json:"items"`
	ShippingCost         models.Money  `json:"shipping_cost"`
	DeliveryAddress      string        `json:"delivery_address"`
	ExpectedDeliveryDate *time.Time    `json:"expected_delivery_date,omitempty"`
}

// SubstituteRequest is a supplier's substitution offer by product id. The
// name always comes from the catalog; a nil UnitPrice takes the catalog price.
type SubstituteRequest struct {
	ProductID string        `json:"product_id" binding:"required"`
	Quantity  int           `json:"quantity"`
	UnitPrice *models.Money `json:"unit_price,omitempty"`
	Notes     string        `json:"notes"`
}

// CreateDraft creates a draft order for the acting buyer.
func (s *OrderService) CreateDraft(ctx context.Context, actor models.Actor, req *CreateDraftRequest) (*negotiation.Transition, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateDraft",
		attribute.String("actor.role", string(actor.Role)),
		attribute.String("supplier.id", req.SupplierID))
	defer span.End()

	start := time.Now()
	t, err := s.createDraft(ctx, actor, req)
	s.observe(models.ActionCreateDraft, start, t, err)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Draft order created",
		zap.String("order_id", t.Order.ID),
		zap.String("order_number", t.Order.OrderNumber),
		zap.String("buyer_id", t.Order.BuyerID))
	s.publish(ctx, t)
	return t, nil
}

func (s *OrderService) createDraft(ctx context.Context, actor models.Actor, req *CreateDraftRequest) (*negotiation.Transition, error) {
	ids := make([]string, len(req.Items))
	for i, line := range req.Items {
		ids[i] = line.ProductID
	}
	snaps, err := s.catalog.GetProductSnapshots(ctx, ids)
	if err != nil {
		return nil, err
	}

	draft := negotiation.DraftRequest{
		SupplierID:           req.SupplierID,
		ShippingCost:         req.ShippingCost,
		DeliveryAddress:      req.DeliveryAddress,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
	}
	for _, line := range req.Items {
		snap, ok := snaps[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", negotiation.ErrNotFound, line.ProductID)
		}
		draft.Lines = append(draft.Lines, negotiation.DraftLine{Product: snap, Quantity: line.Quantity})
	}

	t, err := s.engine.CreateDraft(actor, draft)
	if err != nil {
		return nil, err
	}

	err = s.repo.CreateOrder(ctx, t.Order)
	if errors.Is(err, store.ErrDuplicateOrderNumber) {
		s.logger.Warn("Order number collision, regenerating",
			zap.String("order_number", t.Order.OrderNumber))
		t.Order.OrderNumber = negotiation.NewOrderNumber(t.At)
		err = s.repo.CreateOrder(ctx, t.Order)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return t, nil
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.String("order.id", orderID))
	defer span.End()

	order, err := s.load(ctx, orderID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

// ListOrders lists orders matching the filter, newest first.
func (s *OrderService) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// OutstandingPayments summarizes delivered or completed orders still unpaid.
func (s *OrderService) OutstandingPayments(ctx context.Context, f store.OrderFilter) (negotiation.Outstanding, error) {
	f.Statuses = []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCompleted}
	f.Limit = 0
	orders, err := s.ListOrders(ctx, f)
	if err != nil {
		return negotiation.Outstanding{}, err
	}
	return negotiation.OutstandingPayments(orders), nil
}

// Pipeline counts orders and their value per status.
func (s *OrderService) Pipeline(ctx context.Context, f store.OrderFilter) ([]negotiation.PipelineStage, error) {
	f.Limit = 0
	orders, err := s.ListOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	return negotiation.Pipeline(orders), nil
}

func (s *OrderService) AddDraftItem(ctx context.Context, ref OrderRef, actor models.Actor, line LineRequest) (*negotiation.Transition, error) {
	snap, err := s.catalog.GetProductSnapshot(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, models.ActionAddDraftItem, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.AddDraftItem(o, actor, *snap, line.Quantity)
	})
}

func (s *OrderService) SetDraftItemQuantity(ctx context.Context, ref OrderRef, actor models.Actor, itemID string, qty int) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionSetDraftQuantity, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.SetDraftItemQuantity(o, actor, itemID, qty)
	})
}

func (s *OrderService) RemoveDraftItem(ctx context.Context, ref OrderRef, actor models.Actor, itemID string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionRemoveDraftItem, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.RemoveDraftItem(o, actor, itemID)
	})
}

func (s *OrderService) SetShippingCost(ctx context.Context, ref OrderRef, actor models.Actor, cost models.Money) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionSetShippingCost, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.SetShippingCost(o, actor, cost)
	})
}

// Submit re-checks every line against the live catalog and submits the
// draft only if all of them pass.
func (s *OrderService) Submit(ctx context.Context, ref OrderRef, actor models.Actor) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionSubmit, ref, actor, func(ctx context.Context, o *models.Order) (*negotiation.Transition, error) {
		ids := make([]string, len(o.Items))
		for i := range o.Items {
			ids[i] = o.Items[i].ProductID
		}
		snaps, err := s.catalog.GetProductSnapshots(ctx, ids)
		if err != nil {
			return nil, err
		}
		return s.engine.Submit(o, actor, snaps)
	})
}

func (s *OrderService) AcceptItem(ctx context.Context, ref OrderRef, actor models.Actor, itemID string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionAcceptItem, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.AcceptItem(o, actor, itemID)
	})
}

func (s *OrderService) RejectItem(ctx context.Context, ref OrderRef, actor models.Actor, itemID, reason string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionRejectItem, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.RejectItem(o, actor, itemID, reason)
	})
}

// SubstituteItem resolves the substitute product in the catalog before
// recording the offer.
func (s *OrderService) SubstituteItem(ctx context.Context, ref OrderRef, actor models.Actor, itemID string, req SubstituteRequest) (*negotiation.Transition, error) {
	snap, err := s.catalog.GetProductSnapshot(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	offer := negotiation.SubstitutionOffer{
		ProductID:   snap.ProductID,
		ProductName: snap.Name,
		Quantity:    req.Quantity,
		UnitPrice:   snap.UnitPrice,
		Notes:       req.Notes,
	}
	if req.UnitPrice != nil {
		offer.UnitPrice = *req.UnitPrice
	}
	return s.mutate(ctx, models.ActionSubstituteItem, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.SubstituteItem(o, actor, itemID, offer)
	})
}

func (s *OrderService) AdjustItem(ctx context.Context, ref OrderRef, actor models.Actor, itemID string, adj negotiation.Adjustment) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionAdjustItem, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.AdjustItem(o, actor, itemID, adj)
	})
}

func (s *OrderService) AddItemNote(ctx context.Context, ref OrderRef, actor models.Actor, itemID, note string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionAddItemNote, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.AddItemNote(o, actor, itemID, note)
	})
}

func (s *OrderService) AcceptSubstitution(ctx context.Context, ref OrderRef, actor models.Actor, itemID string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionAcceptSubstitution, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.AcceptSubstitution(o, actor, itemID)
	})
}

func (s *OrderService) RejectSubstitution(ctx context.Context, ref OrderRef, actor models.Actor, itemID, reason string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionRejectSubstitution, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.RejectSubstitution(o, actor, itemID, reason)
	})
}

func (s *OrderService) Confirm(ctx context.Context, ref OrderRef, actor models.Actor) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionConfirm, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.Confirm(o, actor)
	})
}

func (s *OrderService) Reject(ctx context.Context, ref OrderRef, actor models.Actor, reason string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionReject, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.Reject(o, actor, reason)
	})
}

func (s *OrderService) SendForReview(ctx context.Context, ref OrderRef, actor models.Actor, summary string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionSendForReview, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.SendForReview(o, actor, summary)
	})
}

func (s *OrderService) ApproveChanges(ctx context.Context, ref OrderRef, actor models.Actor, decisions map[string]negotiation.SubstitutionDecision) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionApproveChanges, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.ApproveChanges(o, actor, decisions)
	})
}

func (s *OrderService) RejectChanges(ctx context.Context, ref OrderRef, actor models.Actor, reason string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionRejectChanges, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.RejectChanges(o, actor, reason)
	})
}

func (s *OrderService) StartProcessing(ctx context.Context, ref OrderRef, actor models.Actor) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionStartProcessing, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.StartProcessing(o, actor)
	})
}

func (s *OrderService) Ship(ctx context.Context, ref OrderRef, actor models.Actor, shipment negotiation.Shipment) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionShip, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.Ship(o, actor, shipment)
	})
}

func (s *OrderService) ConfirmDelivery(ctx context.Context, ref OrderRef, actor models.Actor) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionConfirmDelivery, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.ConfirmDelivery(o, actor)
	})
}

func (s *OrderService) Complete(ctx context.Context, ref OrderRef, actor models.Actor) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionComplete, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.Complete(o, actor)
	})
}

// MarkPaid records payment. A zero paidAt means now.
func (s *OrderService) MarkPaid(ctx context.Context, ref OrderRef, actor models.Actor, paidAt time.Time) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionMarkPaid, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.MarkPaid(o, actor, paidAt)
	})
}

func (s *OrderService) Cancel(ctx context.Context, ref OrderRef, actor models.Actor, reason string) (*negotiation.Transition, error) {
	return s.mutate(ctx, models.ActionCancel, ref, actor, func(_ context.Context, o *models.Order) (*negotiation.Transition, error) {
		return s.engine.Cancel(o, actor, reason)
	})
}

type applyFunc func(ctx context.Context, o *models.Order) (*negotiation.Transition, error)

// mutate runs one locked load-apply-save cycle. Publishing happens after the
// lock is released and never fails the call.
func (s *OrderService) mutate(ctx context.Context, action models.Action, ref OrderRef, actor models.Actor, apply applyFunc) (*negotiation.Transition, error) {
	ctx, span := util.StartSpan(ctx, "OrderService."+string(action),
		attribute.String("order.id", ref.ID),
		attribute.String("actor.role", string(actor.Role)))
	defer span.End()

	start := time.Now()
	t, err := s.applyLocked(ctx, action, ref, apply)
	s.observe(action, start, t, err)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if !t.Changed {
		return t, nil
	}

	span.SetAttributes(
		attribute.String("order.status.before", string(t.BeforeStatus)),
		attribute.String("order.status.after", string(t.AfterStatus)))
	if t.BeforeStatus != t.AfterStatus {
		util.OrderStatusChangesTotal.WithLabelValues(string(t.AfterStatus)).Inc()
		s.logger.Info("Order status changed",
			zap.String("order_id", t.Order.ID),
			zap.String("action", string(action)),
			zap.String("from", string(t.BeforeStatus)),
			zap.String("to", string(t.AfterStatus)))
	}
	s.publish(ctx, t)
	return t, nil
}

func (s *OrderService) applyLocked(ctx context.Context, action models.Action, ref OrderRef, apply applyFunc) (*negotiation.Transition, error) {
	release, err := s.locker.Acquire(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.load(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if ref.ExpectedVersion != 0 && ref.ExpectedVersion != order.Version {
		util.ConcurrentModificationsTotal.WithLabelValues("stale_version").Inc()
		return nil, fmt.Errorf("%w: order %s is at version %d, not %d",
			negotiation.ErrConcurrentModification, order.ID, order.Version, ref.ExpectedVersion)
	}

	t, err := apply(ctx, order)
	if err != nil {
		return nil, err
	}
	if !t.Changed {
		return t, nil
	}

	if err := s.repo.SaveOrder(ctx, t.Order, order.Version); err != nil {
		switch {
		case errors.Is(err, store.ErrVersionConflict):
			util.ConcurrentModificationsTotal.WithLabelValues("version_conflict").Inc()
			return nil, fmt.Errorf("%w: %v", negotiation.ErrConcurrentModification, err)
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: order %s", negotiation.ErrNotFound, ref.ID)
		}
		return nil, fmt.Errorf("failed to save order %s after %s: %w", ref.ID, action, err)
	}
	return t, nil
}

func (s *OrderService) load(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", negotiation.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return order, nil
}

// publish emits the audit record and notification of a persisted
// transition. Failures are logged and counted; the transition stands.
func (s *OrderService) publish(ctx context.Context, t *negotiation.Transition) {
	if s.publisher == nil {
		return
	}

	record := t.AuditRecord(uuid.NewString())
	if err := s.publisher.PublishAudit(ctx, &record); err != nil {
		s.logger.Error("Failed to publish audit record",
			zap.String("order_id", t.Order.ID),
			zap.String("action", string(t.Action)),
			zap.Error(err))
	}

	event := t.Event(uuid.NewString())
	if err := s.publisher.PublishOrderTransitioned(ctx, &event); err != nil {
		s.logger.Error("Failed to publish OrderTransitioned event",
			zap.String("order_id", t.Order.ID),
			zap.String("action", string(t.Action)),
			zap.Error(err))
	}
}

func (s *OrderService) observe(action models.Action, start time.Time, t *negotiation.Transition, err error) {
	util.TransitionLatency.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())

	result := outcome(err)
	if err == nil && t != nil && !t.Changed {
		result = "noop"
	}
	util.TransitionsTotal.WithLabelValues(string(action), result).Inc()
	if result == "validation" {
		util.ValidationFailuresTotal.WithLabelValues(string(action)).Inc()
	}
	if result == "error" {
		s.logger.Error("Order operation failed", zap.String("action", string(action)), zap.Error(err))
	}
}

// outcome classifies an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, negotiation.ErrValidation):
		return "validation"
	case errors.Is(err, negotiation.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, negotiation.ErrInconsistentState):
		return "inconsistent_state"
	case errors.Is(err, negotiation.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, negotiation.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
