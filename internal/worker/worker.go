package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"purchase-order-service/internal/broker"
	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/service"
	"purchase-order-service/internal/util"

	"go.uber.org/zap"
)

// OrderTransitioner is the part of the order service driven by signals.
type OrderTransitioner interface {
	MarkPaid(ctx context.Context, ref service.OrderRef, actor models.Actor, paidAt time.Time) (*negotiation.Transition, error)
	Complete(ctx context.Context, ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error)
}

// EventLedger remembers which signals were already applied.
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Payment signals act for the buyer, invoicing signals for the supplier.
const (
	defaultPaymentActor = "payment-system"
	defaultInvoiceActor = "invoicing-system"
)

// SignalWorker applies payment and invoicing signals from Kafka.
type SignalWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	orders       OrderTransitioner
	ledger       EventLedger
	logger       *zap.Logger
}

// NewSignalWorker creates a new signal worker
func NewSignalWorker(consumer *broker.Consumer, orders OrderTransitioner, ledger EventLedger) *SignalWorker {
	w := &SignalWorker{
		consumer: consumer,
		orders:   orders,
		ledger:   ledger,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentRecorded(w.HandlePaymentRecorded)
	eventHandler.OnInvoiceCreated(w.HandleInvoiceCreated)
	w.eventHandler = eventHandler
	return w
}

// Start starts the worker
func (w *SignalWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting signal worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SignalWorker) Stop() error {
	w.logger.Info("Stopping signal worker")
	return w.consumer.Close()
}

// HandlePaymentRecorded marks the order paid.
func (w *SignalWorker) HandlePaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	actor := models.Actor{Role: models.ActorBuyer, ID: orDefault(event.ActorID, defaultPaymentActor)}
	return w.apply(ctx, event.BaseEvent, event.OrderID, func(ctx context.Context) (*negotiation.Transition, error) {
		return w.orders.MarkPaid(ctx, service.OrderRef{ID: event.OrderID}, actor, event.PaidAt)
	})
}

// HandleInvoiceCreated completes the invoiced order.
func (w *SignalWorker) HandleInvoiceCreated(ctx context.Context, event *models.InvoiceCreatedEvent) error {
	actor := models.Actor{Role: models.ActorSupplier, ID: orDefault(event.ActorID, defaultInvoiceActor)}
	return w.apply(ctx, event.BaseEvent, event.OrderID, func(ctx context.Context) (*negotiation.Transition, error) {
		return w.orders.Complete(ctx, service.OrderRef{ID: event.OrderID}, actor)
	})
}

// apply runs one signal at most once. Signals the order can never accept
// are recorded and dropped; other failures are returned so the message is
// not committed and gets redelivered.
func (w *SignalWorker) apply(ctx context.Context, event models.BaseEvent, orderID string, run func(context.Context) (*negotiation.Transition, error)) error {
	ctx, span := util.StartSpan(ctx, "SignalWorker."+event.EventType)
	defer span.End()

	logger := w.logger.With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("order_id", orderID))

	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		logger.Info("Event already processed")
		util.SignalsProcessedTotal.WithLabelValues(event.EventType, "duplicate").Inc()
		return nil
	}

	t, err := run(ctx)
	switch {
	case err == nil:
		result := "applied"
		if !t.Changed {
			result = "noop"
		}
		logger.Info("Signal applied", zap.String("result", result), zap.String("status", string(t.AfterStatus)))
		util.SignalsProcessedTotal.WithLabelValues(event.EventType, result).Inc()
	case permanent(err):
		logger.Warn("Signal rejected", zap.Error(err))
		util.SignalsProcessedTotal.WithLabelValues(event.EventType, "rejected").Inc()
	default:
		util.RecordError(span, err)
		util.SignalsProcessedTotal.WithLabelValues(event.EventType, "retry").Inc()
		return fmt.Errorf("failed to apply %s for order %s: %w", event.EventType, orderID, err)
	}

	if err := w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		logger.Error("Failed to mark event processed", zap.Error(err))
		return err
	}
	return nil
}

// permanent reports errors that redelivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, negotiation.ErrValidation) ||
		errors.Is(err, negotiation.ErrInvalidTransition) ||
		errors.Is(err, negotiation.ErrInconsistentState) ||
		errors.Is(err, negotiation.ErrNotFound)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
