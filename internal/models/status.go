package models

// OrderStatus is the order-level lifecycle state.
type OrderStatus string

const (
	OrderStatusDraft              OrderStatus = "draft"
	OrderStatusSubmitted          OrderStatus = "submitted"
	OrderStatusPendingBuyerReview OrderStatus = "pending_buyer_review"
	OrderStatusConfirmed          OrderStatus = "confirmed"
	OrderStatusProcessing         OrderStatus = "processing"
	OrderStatusShipped            OrderStatus = "shipped"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusCompleted          OrderStatus = "completed"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusRejected           OrderStatus = "rejected"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusSubmitted,
	OrderStatusPendingBuyerReview,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRejected,
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft,
		OrderStatusSubmitted,
		OrderStatusPendingBuyerReview,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCompleted,
		OrderStatusCancelled,
		OrderStatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the order is read-only (paid_at aside).
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// IsEditable reports whether supplier item responses are accepted.
func (s OrderStatus) IsEditable() bool {
	return s == OrderStatusSubmitted || s == OrderStatusPendingBuyerReview
}

// IsSettled reports whether the order has left the negotiation phase
// on the fulfillment path. Every item must be resolved in these states.
func (s OrderStatus) IsSettled() bool {
	switch s {
	case OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// ItemStatus is the per-line negotiation state.
type ItemStatus string

const (
	ItemStatusPending              ItemStatus = "pending"
	ItemStatusAccepted             ItemStatus = "accepted"
	ItemStatusRejected             ItemStatus = "rejected"
	ItemStatusSubstitutionOffered  ItemStatus = "substitution_offered"
	ItemStatusSubstitutionAccepted ItemStatus = "substitution_accepted"
	ItemStatusSubstitutionRejected ItemStatus = "substitution_rejected"
	ItemStatusQuantityAdjusted     ItemStatus = "quantity_adjusted"
	ItemStatusPriceAdjusted        ItemStatus = "price_adjusted"
)

func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending,
		ItemStatusAccepted,
		ItemStatusRejected,
		ItemStatusSubstitutionOffered,
		ItemStatusSubstitutionAccepted,
		ItemStatusSubstitutionRejected,
		ItemStatusQuantityAdjusted,
		ItemStatusPriceAdjusted:
		return true
	default:
		return false
	}
}

// IsResolved reports whether the line needs no further decision.
func (s ItemStatus) IsResolved() bool {
	switch s {
	case ItemStatusAccepted,
		ItemStatusRejected,
		ItemStatusSubstitutionAccepted,
		ItemStatusSubstitutionRejected:
		return true
	default:
		return false
	}
}

// IsExcluded reports whether the line is left out of the subtotal.
func (s ItemStatus) IsExcluded() bool {
	return s == ItemStatusRejected || s == ItemStatusSubstitutionRejected
}

// IsChange reports whether the supplier proposed something other than
// the line as submitted.
func (s ItemStatus) IsChange() bool {
	return s != ItemStatusPending && s != ItemStatusAccepted
}

// IsAdjusted reports whether an adjustment proposal is awaiting approval.
func (s ItemStatus) IsAdjusted() bool {
	return s == ItemStatusQuantityAdjusted || s == ItemStatusPriceAdjusted
}

// CanTransitionTo checks the item transition table.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	switch s {
	case ItemStatusPending, ItemStatusAccepted:
		return next == ItemStatusAccepted ||
			next == ItemStatusRejected ||
			next == ItemStatusSubstitutionOffered ||
			next == ItemStatusQuantityAdjusted ||
			next == ItemStatusPriceAdjusted
	case ItemStatusSubstitutionOffered:
		return next == ItemStatusSubstitutionOffered ||
			next == ItemStatusQuantityAdjusted ||
			next == ItemStatusPriceAdjusted ||
			next == ItemStatusRejected ||
			next == ItemStatusSubstitutionAccepted ||
			next == ItemStatusSubstitutionRejected
	case ItemStatusQuantityAdjusted, ItemStatusPriceAdjusted:
		return next == ItemStatusQuantityAdjusted ||
			next == ItemStatusPriceAdjusted ||
			next == ItemStatusSubstitutionOffered ||
			next == ItemStatusRejected ||
			next == ItemStatusAccepted
	case ItemStatusRejected:
		return next == ItemStatusRejected
	case ItemStatusSubstitutionAccepted, ItemStatusSubstitutionRejected:
		return false
	default:
		return false
	}
}

// ActorRole identifies which party invoked an operation.
type ActorRole string

const (
	ActorBuyer    ActorRole = "buyer"
	ActorSupplier ActorRole = "supplier"
)

func (r ActorRole) IsValid() bool {
	return r == ActorBuyer || r == ActorSupplier
}

// Actor is the principal behind a transition.
type Actor struct {
	Role ActorRole `json:"role"`
	ID   string    `json:"id"`
}
