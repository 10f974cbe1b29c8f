package models

import "time"

// Event types
const (
	EventTypeOrderTransitioned = "ORDER_TRANSITIONED"
	EventTypeAuditRecord       = "AUDIT_RECORD"
	EventTypePaymentRecorded   = "PAYMENT_RECORDED"
	EventTypeInvoiceCreated    = "INVOICE_CREATED"
)

// Action names a state-changing operation.
type Action string

const (
	ActionCreateDraft        Action = "create_draft"
	ActionAddDraftItem       Action = "add_draft_item"
	ActionSetDraftQuantity   Action = "set_draft_quantity"
	ActionRemoveDraftItem    Action = "remove_draft_item"
	ActionSetShippingCost    Action = "set_shipping_cost"
	ActionSubmit             Action = "submit"
	ActionAcceptItem         Action = "accept_item"
	ActionRejectItem         Action = "reject_item"
	ActionSubstituteItem     Action = "substitute_item"
	ActionAdjustItem         Action = "adjust_item"
	ActionAddItemNote        Action = "add_item_note"
	ActionAcceptSubstitution Action = "accept_substitution"
	ActionRejectSubstitution Action = "reject_substitution"
	ActionConfirm            Action = "confirm"
	ActionReject             Action = "reject"
	ActionSendForReview      Action = "send_for_review"
	ActionApproveChanges     Action = "approve_changes"
	ActionRejectChanges      Action = "reject_changes"
	ActionStartProcessing    Action = "start_processing"
	ActionShip               Action = "ship"
	ActionConfirmDelivery    Action = "confirm_delivery"
	ActionMarkPaid           Action = "mark_paid"
	ActionComplete           Action = "complete"
	ActionCancel             Action = "cancel"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditRecord is the immutable record emitted after every successful transition.
type AuditRecord struct {
	BaseEvent
	OrderID      string      `json:"order_id"`
	OrderNumber  string      `json:"order_number"`
	ActorRole    ActorRole   `json:"actor_role"`
	ActorID      string      `json:"actor_id"`
	Action       Action      `json:"action"`
	BeforeStatus OrderStatus `json:"before_status"`
	AfterStatus  OrderStatus `json:"after_status"`
	AmountChange Money       `json:"amount_change"`
	ItemIDs      []string    `json:"item_ids,omitempty"`
}

// OrderTransitionedEvent carries what a notifier needs after a transition.
type OrderTransitionedEvent struct {
	BaseEvent
	OrderID        string      `json:"order_id"`
	OrderNumber    string      `json:"order_number"`
	BuyerID        string      `json:"buyer_id"`
	SupplierID     string      `json:"supplier_id"`
	Action         Action      `json:"action"`
	ActorRole      ActorRole   `json:"actor_role"`
	BeforeStatus   OrderStatus `json:"before_status"`
	AfterStatus    OrderStatus `json:"after_status"`
	ChangedItemIDs []string    `json:"changed_item_ids,omitempty"`
	Total          Money       `json:"total"`
	Version        int64       `json:"version"`
}

// PaymentRecordedEvent is published by the payment system when an order is paid.
type PaymentRecordedEvent struct {
	BaseEvent
	OrderID string    `json:"order_id"`
	ActorID string    `json:"actor_id"`
	PaidAt  time.Time `json:"paid_at"`
}

// InvoiceCreatedEvent is published by invoicing once a delivered order is invoiced.
type InvoiceCreatedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	ActorID       string `json:"actor_id"`
	InvoiceNumber string `json:"invoice_number"`
}
