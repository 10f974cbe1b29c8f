package negotiation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"purchase-order-service/internal/models"
)

// Decision is the buyer's answer to a substitution offer.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// SubstitutionDecision pairs a decision with an optional reason.
type SubstitutionDecision struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
}

// Shipment carries the optional details recorded when an order ships.
type Shipment struct {
	TrackingNumber       string     `json:"tracking_number,omitempty"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
}

var errAlreadyDecided = errors.New("substitution already decided")

func applyDecision(it *models.OrderItem, accept bool, reason string) error {
	switch {
	case it.Status == models.ItemStatusSubstitutionOffered:
	case accept && it.Status == models.ItemStatusSubstitutionAccepted,
		!accept && it.Status == models.ItemStatusSubstitutionRejected:
		return errAlreadyDecided
	default:
		return invalidItem(it, "item has no open substitution offer")
	}
	if accept {
		it.Status = models.ItemStatusSubstitutionAccepted
		it.RejectionReason = nil
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultSubstitutionRejectionReason
	}
	it.Status = models.ItemStatusSubstitutionRejected
	it.RejectionReason = &reason
	return nil
}

// transition moves the working copy along the order state table.
func (m *mutation) transition() error {
	to, err := NextStatus(m.action, m.order.Status)
	if err != nil {
		return err
	}
	m.order.Status = to
	return nil
}

// Confirm accepts the order as submitted. Every item must be pending or
// accepted; pending items become accepted.
func (e *Engine) Confirm(o *models.Order, actor models.Actor) (*Transition, error) {
	m, err := e.begin(o, models.ActionConfirm, actor)
	if err != nil {
		return nil, err
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	var changed []string
	for i := range m.order.Items {
		if m.order.Items[i].Status.IsChange() {
			changed = append(changed, m.order.Items[i].ID)
		}
	}
	if len(changed) > 0 {
		return nil, fmt.Errorf("%w: items %v carry proposed changes, send the order for review instead",
			ErrInvalidTransition, changed)
	}
	for i := range m.order.Items {
		it := &m.order.Items[i]
		if it.Status == models.ItemStatusPending {
			it.Status = models.ItemStatusAccepted
			m.touch(it)
		}
	}
	m.order.StatusReason = nil
	return m.commit()
}

// Reject declines the whole order.
func (e *Engine) Reject(o *models.Order, actor models.Actor, reason string) (*Transition, error) {
	return e.closeWithReason(o, actor, models.ActionReject, reason)
}

// RejectChanges is the buyer refusing the supplier's proposals. Items keep
// their proposed statuses for the record.
func (e *Engine) RejectChanges(o *models.Order, actor models.Actor, reason string) (*Transition, error) {
	return e.closeWithReason(o, actor, models.ActionRejectChanges, reason)
}

func (e *Engine) closeWithReason(o *models.Order, actor models.Actor, action models.Action, reason string) (*Transition, error) {
	m, err := e.begin(o, action, actor)
	if err != nil {
		return nil, err
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason is required")
	}
	m.order.StatusReason = &reason
	return m.commit()
}

// SendForReview hands the supplier's proposals to the buyer. At least one
// item must carry a change.
func (e *Engine) SendForReview(o *models.Order, actor models.Actor, summary string) (*Transition, error) {
	m, err := e.begin(o, models.ActionSendForReview, actor)
	if err != nil {
		return nil, err
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	hasChange := false
	for i := range m.order.Items {
		if m.order.Items[i].Status.IsChange() {
			hasChange = true
			break
		}
	}
	if !hasChange {
		return nil, fmt.Errorf("%w: order %s has no proposed changes to review", ErrInvalidTransition, m.order.ID)
	}
	at := m.at
	m.order.ReviewRequestedAt = &at
	m.order.SupplierChangesSummary = nil
	if s := strings.TrimSpace(summary); s != "" {
		m.order.SupplierChangesSummary = &s
	}
	return m.commit()
}

// ApproveChanges is the buyer accepting the reviewed order. Every open
// substitution must be covered by decisions, or by an earlier per-item
// decision; adjusted and pending items become accepted. All decisions
// apply together or none do.
func (e *Engine) ApproveChanges(o *models.Order, actor models.Actor, decisions map[string]SubstitutionDecision) (*Transition, error) {
	m, err := e.begin(o, models.ActionApproveChanges, actor)
	if err != nil {
		return nil, err
	}
	if err := m.transition(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(decisions))
	for id := range decisions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var problems []Problem
	for _, id := range ids {
		it, err := m.item(id)
		if err != nil {
			return nil, err
		}
		d := decisions[id]
		if d.Decision != DecisionAccept && d.Decision != DecisionReject {
			problems = append(problems, itemProblem(it, fmt.Sprintf("unknown decision %q", d.Decision)))
			continue
		}
		err = applyDecision(it, d.Decision == DecisionAccept, d.Reason)
		switch {
		case err == nil:
			m.touch(it)
		case errors.Is(err, errAlreadyDecided):
		default:
			var ve *ValidationError
			if errors.As(err, &ve) {
				problems = append(problems, ve.Problems...)
				continue
			}
			return nil, err
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	var undecided []string
	for i := range m.order.Items {
		it := &m.order.Items[i]
		switch {
		case it.Status == models.ItemStatusSubstitutionOffered:
			undecided = append(undecided, it.ID)
		case it.Status == models.ItemStatusPending, it.Status.IsAdjusted():
			// The adjustment values stay on the line and drive its total.
			it.Status = models.ItemStatusAccepted
			m.touch(it)
		}
	}
	if len(undecided) > 0 {
		return nil, fmt.Errorf("%w: substitutions for items %v have no decision", ErrInconsistentState, undecided)
	}
	m.order.StatusReason = nil
	return m.commit()
}

// StartProcessing marks a confirmed order as being prepared.
func (e *Engine) StartProcessing(o *models.Order, actor models.Actor) (*Transition, error) {
	return e.simple(o, actor, models.ActionStartProcessing)
}

// Ship records dispatch of a confirmed or processing order.
func (e *Engine) Ship(o *models.Order, actor models.Actor, s Shipment) (*Transition, error) {
	m, err := e.begin(o, models.ActionShip, actor)
	if err != nil {
		return nil, err
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	if tn := strings.TrimSpace(s.TrackingNumber); tn != "" {
		m.order.TrackingNumber = &tn
	}
	if s.ExpectedDeliveryDate != nil {
		d := *s.ExpectedDeliveryDate
		m.order.ExpectedDeliveryDate = &d
	}
	return m.commit()
}

// ConfirmDelivery is the buyer acknowledging receipt.
func (e *Engine) ConfirmDelivery(o *models.Order, actor models.Actor) (*Transition, error) {
	return e.simple(o, actor, models.ActionConfirmDelivery)
}

// Complete closes a delivered order. Completing a completed order is a no-op.
func (e *Engine) Complete(o *models.Order, actor models.Actor) (*Transition, error) {
	m, err := e.begin(o, models.ActionComplete, actor)
	if err != nil {
		return nil, err
	}
	if m.order.Status == models.OrderStatusCompleted {
		return m.noop(), nil
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	return m.commit()
}

// MarkPaid records payment on a delivered or completed order without
// changing its status. paidAt may be zero to use the current time.
// Marking an already paid order is a no-op.
func (e *Engine) MarkPaid(o *models.Order, actor models.Actor, paidAt time.Time) (*Transition, error) {
	m, err := e.begin(o, models.ActionMarkPaid, actor)
	if err != nil {
		return nil, err
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	if m.before.PaidAt != nil {
		return m.noop(), nil
	}
	if paidAt.IsZero() {
		paidAt = m.at
	}
	paidAt = paidAt.UTC()
	m.order.PaidAt = &paidAt
	return m.commit()
}

// Cancel withdraws an order before it ships. Cancelling an order that is
// already terminal is a no-op.
func (e *Engine) Cancel(o *models.Order, actor models.Actor, reason string) (*Transition, error) {
	m, err := e.begin(o, models.ActionCancel, actor)
	if err != nil {
		return nil, err
	}
	if m.order.Status.IsTerminal() {
		return m.noop(), nil
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	if r := strings.TrimSpace(reason); r != "" {
		m.order.StatusReason = &r
	}
	return m.commit()
}

func (e *Engine) simple(o *models.Order, actor models.Actor, action models.Action) (*Transition, error) {
	m, err := e.begin(o, action, actor)
	if err != nil {
		return nil, err
	}
	if err := m.transition(); err != nil {
		return nil, err
	}
	return m.commit()
}
