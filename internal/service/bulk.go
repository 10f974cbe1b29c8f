package service

import (
	"context"
	"fmt"
	"time"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BulkResult is the outcome for one id of a bulk call.
type BulkResult struct {
	ID         string
	Transition *negotiation.Transition
	Err        error
}

func (r BulkResult) Succeeded() bool {
	return r.Err == nil
}

// CountResults returns how many entries succeeded and failed.
func CountResults(results []BulkResult) (succeeded, failed int) {
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// BulkConfirm confirms each order independently.
func (s *OrderService) BulkConfirm(ctx context.Context, actor models.Actor, orderIDs []string) []BulkResult {
	return s.runBulk(ctx, "confirm", orderIDs, func(ctx context.Context, id string) (*negotiation.Transition, error) {
		return s.Confirm(ctx, OrderRef{ID: id}, actor)
	})
}

// BulkShip ships each order independently with the same shipment details.
func (s *OrderService) BulkShip(ctx context.Context, actor models.Actor, orderIDs []string, shipment negotiation.Shipment) []BulkResult {
	return s.runBulk(ctx, "ship", orderIDs, func(ctx context.Context, id string) (*negotiation.Transition, error) {
		return s.Ship(ctx, OrderRef{ID: id}, actor, shipment)
	})
}

// BulkMarkPaid marks each order paid independently.
func (s *OrderService) BulkMarkPaid(ctx context.Context, actor models.Actor, orderIDs []string, paidAt time.Time) []BulkResult {
	return s.runBulk(ctx, "mark_paid", orderIDs, func(ctx context.Context, id string) (*negotiation.Transition, error) {
		return s.MarkPaid(ctx, OrderRef{ID: id}, actor, paidAt)
	})
}

// runBulk applies fn to every id with bounded concurrency. Each id takes
// its own order lock, and a failure never stops the others.
func (s *OrderService) runBulk(ctx context.Context, operation string, ids []string, fn func(context.Context, string) (*negotiation.Transition, error)) []BulkResult {
	ctx, span := util.StartSpan(ctx, "OrderService.Bulk."+operation)
	defer span.End()

	results := make([]BulkResult, len(ids))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			t, err := fn(ctx, id)
			results[i] = BulkResult{ID: id, Transition: t, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	s.countBulk(operation, results)
	return results
}

// DecideSubstitutions applies one buyer decision to several substitution
// offers of an order. With no item ids it applies to every open offer. The
// items are decided one after another, each as its own transition.
func (s *OrderService) DecideSubstitutions(
	ctx context.Context,
	ref OrderRef,
	actor models.Actor,
	itemIDs []string,
	decision negotiation.SubstitutionDecision,
) ([]BulkResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.DecideSubstitutions")
	defer span.End()

	order, err := s.load(ctx, ref.ID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if ref.ExpectedVersion != 0 && ref.ExpectedVersion != order.Version {
		util.ConcurrentModificationsTotal.WithLabelValues("stale_version").Inc()
		return nil, fmt.Errorf("%w: order %s is at version %d, not %d",
			negotiation.ErrConcurrentModification, order.ID, order.Version, ref.ExpectedVersion)
	}

	var decide func(ctx context.Context, itemID string) (*negotiation.Transition, error)
	switch decision.Decision {
	case negotiation.DecisionAccept:
		decide = func(ctx context.Context, itemID string) (*negotiation.Transition, error) {
			return s.AcceptSubstitution(ctx, OrderRef{ID: ref.ID}, actor, itemID)
		}
	case negotiation.DecisionReject:
		decide = func(ctx context.Context, itemID string) (*negotiation.Transition, error) {
			return s.RejectSubstitution(ctx, OrderRef{ID: ref.ID}, actor, itemID, decision.Reason)
		}
	default:
		return nil, &negotiation.ValidationError{Problems: []negotiation.Problem{
			{Reason: fmt.Sprintf("unknown decision %q", decision.Decision)},
		}}
	}

	if len(itemIDs) == 0 {
		for _, it := range order.Items {
			if it.Status == models.ItemStatusSubstitutionOffered {
				itemIDs = append(itemIDs, it.ID)
			}
		}
	}

	results := make([]BulkResult, 0, len(itemIDs))
	for _, id := range itemIDs {
		t, err := decide(ctx, id)
		results = append(results, BulkResult{ID: id, Transition: t, Err: err})
	}
	s.countBulk("substitution_"+string(decision.Decision), results)
	return results, nil
}

func (s *OrderService) countBulk(operation string, results []BulkResult) {
	succeeded, failed := CountResults(results)
	util.BulkResultsTotal.WithLabelValues(operation, "succeeded").Add(float64(succeeded))
	util.BulkResultsTotal.WithLabelValues(operation, "failed").Add(float64(failed))
	s.logger.Info("Bulk operation finished",
		zap.String("operation", operation),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed))
}
