package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the write side of a single topic.
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
	Topic() string
}

// EventPublisher publishes audit records and order notifications, keyed by
// order id.
type EventPublisher struct {
	audit  Publisher
	orders Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(audit, orders Publisher) *EventPublisher {
	return &EventPublisher{audit: audit, orders: orders}
}

// PublishAudit publishes an AuditRecord
func (ep *EventPublisher) PublishAudit(ctx context.Context, record *models.AuditRecord) error {
	if err := ep.audit.PublishEvent(ctx, record.OrderID, record); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(ep.audit.Topic()).Inc()
		return err
	}
	return nil
}

// PublishOrderTransitioned publishes an OrderTransitioned event
func (ep *EventPublisher) PublishOrderTransitioned(ctx context.Context, event *models.OrderTransitionedEvent) error {
	if err := ep.orders.PublishEvent(ctx, event.OrderID, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(ep.orders.Topic()).Inc()
		return err
	}
	return nil
}

// EventHandler routes inbound payment and invoicing signals.
type EventHandler struct {
	onPaymentRecorded func(context.Context, *models.PaymentRecordedEvent) error
	onInvoiceCreated  func(context.Context, *models.InvoiceCreatedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentRecorded registers a handler for PaymentRecorded events
func (eh *EventHandler) OnPaymentRecorded(handler func(context.Context, *models.PaymentRecordedEvent) error) {
	eh.onPaymentRecorded = handler
}

// OnInvoiceCreated registers a handler for InvoiceCreated events
func (eh *EventHandler) OnInvoiceCreated(handler func(context.Context, *models.InvoiceCreatedEvent) error) {
	eh.onInvoiceCreated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePaymentRecorded:
		if eh.onPaymentRecorded != nil {
			var event models.PaymentRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentRecorded event: %w", err)
			}
			return eh.onPaymentRecorded(ctx, &event)
		}

	case models.EventTypeInvoiceCreated:
		if eh.onInvoiceCreated != nil {
			var event models.InvoiceCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal InvoiceCreated event: %w", err)
			}
			return eh.onInvoiceCreated(ctx, &event)
		}

	default:
		logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
