package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"purchase-order-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type recordingPublisher struct {
	topic string
	keys  []string
	sent  []interface{}
	err   error
}

func (r *recordingPublisher) PublishEvent(_ context.Context, key string, event interface{}) error {
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, key)
	r.sent = append(r.sent, event)
	return nil
}

func (r *recordingPublisher) Topic() string { return r.topic }

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestEventPublisherKeysByOrder(t *testing.T) {
	audit := &recordingPublisher{topic: "audit"}
	orders := &recordingPublisher{topic: "orders"}
	ep := NewEventPublisher(audit, orders)

	ctx := context.Background()
	require.NoError(t, ep.PublishAudit(ctx, &models.AuditRecord{OrderID: "o-1", Action: models.ActionConfirm}))
	require.NoError(t, ep.PublishOrderTransitioned(ctx, &models.OrderTransitionedEvent{OrderID: "o-1"}))

	assert.Equal(t, []string{"o-1"}, audit.keys)
	assert.Equal(t, []string{"o-1"}, orders.keys)
}

func TestEventPublisherPropagatesFailure(t *testing.T) {
	boom := errors.New("broker down")
	ep := NewEventPublisher(&recordingPublisher{topic: "audit", err: boom}, &recordingPublisher{topic: "orders"})

	err := ep.PublishAudit(context.Background(), &models.AuditRecord{OrderID: "o-1"})
	assert.ErrorIs(t, err, boom)
}

func TestHandleMessageRoutesPayment(t *testing.T) {
	h := NewEventHandler()
	var got *models.PaymentRecordedEvent
	h.OnPaymentRecorded(func(_ context.Context, e *models.PaymentRecordedEvent) error {
		got = e
		return nil
	})
	h.OnInvoiceCreated(func(context.Context, *models.InvoiceCreatedEvent) error {
		t.Fatal("invoice handler must not run")
		return nil
	})

	paidAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := message(t, models.PaymentRecordedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypePaymentRecorded},
		OrderID:   "o-1",
		ActorID:   "payments",
		PaidAt:    paidAt,
	})

	require.NoError(t, h.HandleMessage(context.Background(), msg))
	require.NotNil(t, got)
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "o-1", got.OrderID)
	assert.True(t, paidAt.Equal(got.PaidAt))
}

func TestHandleMessageRoutesInvoiceAndPropagatesError(t *testing.T) {
	h := NewEventHandler()
	boom := errors.New("not delivered yet")
	h.OnInvoiceCreated(func(_ context.Context, e *models.InvoiceCreatedEvent) error {
		assert.Equal(t, "INV-7", e.InvoiceNumber)
		return boom
	})

	msg := message(t, models.InvoiceCreatedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeInvoiceCreated},
		OrderID:       "o-1",
		InvoiceNumber: "INV-7",
	})
	assert.ErrorIs(t, h.HandleMessage(context.Background(), msg), boom)
}

func TestHandleMessageIgnoresUnknownAndRejectsGarbage(t *testing.T) {
	h := NewEventHandler()
	msg := message(t, models.BaseEvent{EventID: "x", EventType: "SOMETHING_ELSE"})
	assert.NoError(t, h.HandleMessage(context.Background(), msg))

	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}

func TestMessageCarrierRoundTripsTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	prop := propagation.TraceContext{}
	msg := kafka.Message{Headers: []kafka.Header{{Key: "traceparent", Value: []byte("stale")}}}
	prop.Inject(ctx, NewMessageCarrier(&msg))

	assert.Len(t, msg.Headers, 1)
	assert.Contains(t, NewMessageCarrier(&msg).Keys(), "traceparent")

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), NewMessageCarrier(&msg)))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
	assert.Equal(t, "", NewMessageCarrier(&msg).Get("missing"))
}
