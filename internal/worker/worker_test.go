package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/service"
	"purchase-order-service/internal/store"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	action models.Action
	ref    service.OrderRef
	actor  models.Actor
	paidAt time.Time
}

type fakeOrders struct {
	calls   []call
	err     error
	changed bool
}

func (f *fakeOrders) result(action models.Action) (*negotiation.Transition, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &negotiation.Transition{Action: action, Changed: f.changed, AfterStatus: models.OrderStatusCompleted}, nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, ref service.OrderRef, actor models.Actor, paidAt time.Time) (*negotiation.Transition, error) {
	f.calls = append(f.calls, call{action: models.ActionMarkPaid, ref: ref, actor: actor, paidAt: paidAt})
	return f.result(models.ActionMarkPaid)
}

func (f *fakeOrders) Complete(_ context.Context, ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
	f.calls = append(f.calls, call{action: models.ActionComplete, ref: ref, actor: actor})
	return f.result(models.ActionComplete)
}

func paymentMessage(t *testing.T, eventID, orderID string, paidAt time.Time) kafka.Message {
	t.Helper()
	b, err := json.Marshal(models.PaymentRecordedEvent{
		BaseEvent: models.BaseEvent{EventID: eventID, EventType: models.EventTypePaymentRecorded},
		OrderID:   orderID,
		PaidAt:    paidAt,
	})
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestPaymentSignalAppliedOnce(t *testing.T) {
	orders := &fakeOrders{changed: true}
	ledger := store.NewMemoryStore()
	w := NewSignalWorker(nil, orders, ledger)
	ctx := context.Background()

	paidAt := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	msg := paymentMessage(t, "evt-1", "order-1", paidAt)

	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))
	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))

	require.Len(t, orders.calls, 1)
	c := orders.calls[0]
	assert.Equal(t, models.ActionMarkPaid, c.action)
	assert.Equal(t, "order-1", c.ref.ID)
	assert.Equal(t, models.ActorBuyer, c.actor.Role)
	assert.Equal(t, defaultPaymentActor, c.actor.ID)
	assert.True(t, paidAt.Equal(c.paidAt))

	processed, err := ledger.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInvoiceSignalCompletesAsSupplier(t *testing.T) {
	orders := &fakeOrders{changed: true}
	w := NewSignalWorker(nil, orders, store.NewMemoryStore())

	err := w.HandleInvoiceCreated(context.Background(), &models.InvoiceCreatedEvent{
		BaseEvent:     models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeInvoiceCreated},
		OrderID:       "order-1",
		ActorID:       "billing-7",
		InvoiceNumber: "INV-1",
	})
	require.NoError(t, err)
	require.Len(t, orders.calls, 1)
	assert.Equal(t, models.ActionComplete, orders.calls[0].action)
	assert.Equal(t, models.Actor{Role: models.ActorSupplier, ID: "billing-7"}, orders.calls[0].actor)
}

func TestPermanentFailureIsRecordedAndDropped(t *testing.T) {
	orders := &fakeOrders{err: fmt.Errorf("%w: mark_paid from shipped", negotiation.ErrInvalidTransition)}
	ledger := store.NewMemoryStore()
	w := NewSignalWorker(nil, orders, ledger)
	ctx := context.Background()

	require.NoError(t, w.eventHandler.HandleMessage(ctx, paymentMessage(t, "evt-3", "order-1", time.Time{})))

	processed, err := ledger.IsEventProcessed(ctx, "evt-3")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestTransientFailureIsRetried(t *testing.T) {
	orders := &fakeOrders{err: fmt.Errorf("%w: order busy", negotiation.ErrConcurrentModification)}
	ledger := store.NewMemoryStore()
	w := NewSignalWorker(nil, orders, ledger)
	ctx := context.Background()

	err := w.eventHandler.HandleMessage(ctx, paymentMessage(t, "evt-4", "order-1", time.Time{}))
	assert.ErrorIs(t, err, negotiation.ErrConcurrentModification)

	processed, err := ledger.IsEventProcessed(ctx, "evt-4")
	require.NoError(t, err)
	assert.False(t, processed)

	orders.err = nil
	require.NoError(t, w.eventHandler.HandleMessage(ctx, paymentMessage(t, "evt-4", "order-1", time.Time{})))
	assert.Len(t, orders.calls, 2)
}

type brokenLedger struct{}

func (brokenLedger) IsEventProcessed(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func (brokenLedger) MarkEventProcessed(context.Context, string, string) error {
	return nil
}

func TestLedgerFailureStopsProcessing(t *testing.T) {
	orders := &fakeOrders{changed: true}
	w := NewSignalWorker(nil, orders, brokenLedger{})

	err := w.eventHandler.HandleMessage(context.Background(), paymentMessage(t, "evt-5", "order-1", time.Time{}))
	assert.Error(t, err)
	assert.Empty(t, orders.calls)
}
