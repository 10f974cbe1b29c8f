package models

import "time"

// Product represents a product in the catalog
type Product struct {
	ID          string    `db:"id" json:"id"`
	SupplierID  string    `db:"supplier_id" json:"supplier_id"`
	SKU         string    `db:"sku" json:"sku"`
	Name        string    `db:"name" json:"name"`
	UnitPrice   Money     `db:"unit_price" json:"unit_price"`
	MinOrderQty int       `db:"min_order_qty" json:"min_order_qty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Inventory represents product stock
type Inventory struct {
	ProductID string    `db:"product_id" json:"product_id"`
	Available int       `db:"available" json:"available"`
	InStock   bool      `db:"in_stock" json:"in_stock"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProductSnapshot is the catalog view of a product at lookup time.
type ProductSnapshot struct {
	ProductID      string `db:"id" json:"product_id"`
	Name           string `db:"name" json:"name"`
	SKU            string `db:"sku" json:"sku"`
	UnitPrice      Money  `db:"unit_price" json:"unit_price"`
	StockAvailable int    `db:"available" json:"stock_available"`
	InStock        bool   `db:"in_stock" json:"in_stock"`
	MinOrderQty    int    `db:"min_order_qty" json:"min_order_qty"`
}

// Order is a buyer's purchase order to one supplier. It owns its items.
type Order struct {
	ID                     string      `db:"id" json:"id"`
	OrderNumber            string      `db:"order_number" json:"order_number"`
	BuyerID                string      `db:"buyer_id" json:"buyer_id"`
	SupplierID             string      `db:"supplier_id" json:"supplier_id"`
	Status                 OrderStatus `db:"status" json:"status"`
	StatusReason           *string     `db:"status_reason" json:"status_reason,omitempty"`
	Subtotal               Money       `db:"subtotal" json:"subtotal"`
	ShippingCost           Money       `db:"shipping_cost" json:"shipping_cost"`
	Total                  Money       `db:"total" json:"total"`
	ExpectedDeliveryDate   *time.Time  `db:"expected_delivery_date" json:"expected_delivery_date,omitempty"`
	TrackingNumber         *string     `db:"tracking_number" json:"tracking_number,omitempty"`
	DeliveryAddress        *string     `db:"delivery_address" json:"delivery_address,omitempty"`
	SupplierChangesSummary *string     `db:"supplier_changes_summary" json:"supplier_changes_summary,omitempty"`
	ReviewRequestedAt      *time.Time  `db:"review_requested_at" json:"review_requested_at,omitempty"`
	PaidAt                 *time.Time  `db:"paid_at" json:"paid_at,omitempty"`
	Version                int64       `db:"version" json:"version"`
	CreatedAt              time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time   `db:"updated_at" json:"updated_at"`
	Items                  []OrderItem `db:"-" json:"items"`
}

// OrderItem is one line of an order. Product name and SKU are copied at
// creation so catalog edits never alter a placed order.
type OrderItem struct {
	ID          string     `db:"id" json:"id"`
	OrderID     string     `db:"order_id" json:"order_id"`
	Position    int        `db:"position" json:"position"`
	ProductID   string     `db:"product_id" json:"product_id"`
	ProductName string     `db:"product_name" json:"product_name"`
	ProductSKU  string     `db:"product_sku" json:"product_sku"`
	Quantity    int        `db:"quantity" json:"quantity"`
	UnitPrice   Money      `db:"unit_price" json:"unit_price"`
	LineTotal   Money      `db:"line_total" json:"line_total"`
	Status      ItemStatus `db:"status" json:"status"`

	RejectionReason *string `db:"rejection_reason" json:"rejection_reason,omitempty"`

	SubstituteProductID   *string `db:"substitute_product_id" json:"substitute_product_id,omitempty"`
	SubstituteProductName *string `db:"substitute_product_name" json:"substitute_product_name,omitempty"`
	SubstituteQuantity    *int    `db:"substitute_quantity" json:"substitute_quantity,omitempty"`
	SubstituteUnitPrice   *Money  `db:"substitute_unit_price" json:"substitute_unit_price,omitempty"`
	SubstituteNotes       *string `db:"substitute_notes" json:"substitute_notes,omitempty"`
	SubstituteLineTotal   *Money  `db:"substitute_line_total" json:"substitute_line_total,omitempty"`

	AdjustedQuantity  *int    `db:"adjusted_quantity" json:"adjusted_quantity,omitempty"`
	AdjustedUnitPrice *Money  `db:"adjusted_unit_price" json:"adjusted_unit_price,omitempty"`
	AdjustmentReason  *string `db:"adjustment_reason" json:"adjustment_reason,omitempty"`
	AdjustedLineTotal *Money  `db:"adjusted_line_total" json:"adjusted_line_total,omitempty"`

	SupplierItemNotes *string `db:"supplier_item_notes" json:"supplier_item_notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasSubstitution reports whether substitution fields are populated.
func (i *OrderItem) HasSubstitution() bool {
	return i.SubstituteProductID != nil
}

// HasAdjustment reports whether adjustment fields are populated.
func (i *OrderItem) HasAdjustment() bool {
	return i.AdjustedQuantity != nil || i.AdjustedUnitPrice != nil
}

// ClearSubstitution drops every substitution field.
func (i *OrderItem) ClearSubstitution() {
	i.SubstituteProductID = nil
	i.SubstituteProductName = nil
	i.SubstituteQuantity = nil
	i.SubstituteUnitPrice = nil
	i.SubstituteNotes = nil
	i.SubstituteLineTotal = nil
}

// ClearAdjustment drops every adjustment field.
func (i *OrderItem) ClearAdjustment() {
	i.AdjustedQuantity = nil
	i.AdjustedUnitPrice = nil
	i.AdjustmentReason = nil
	i.AdjustedLineTotal = nil
}

// Item returns a pointer to the item with the given id, or nil.
func (o *Order) Item(itemID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the order and its items.
func (o *Order) Clone() *Order {
	c := *o
	c.StatusReason = clonePtr(o.StatusReason)
	c.ExpectedDeliveryDate = clonePtr(o.ExpectedDeliveryDate)
	c.TrackingNumber = clonePtr(o.TrackingNumber)
	c.DeliveryAddress = clonePtr(o.DeliveryAddress)
	c.SupplierChangesSummary = clonePtr(o.SupplierChangesSummary)
	c.ReviewRequestedAt = clonePtr(o.ReviewRequestedAt)
	c.PaidAt = clonePtr(o.PaidAt)

	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		for i := range o.Items {
			c.Items[i] = o.Items[i].clone()
		}
	}
	return &c
}

func (i OrderItem) clone() OrderItem {
	c := i
	c.RejectionReason = clonePtr(i.RejectionReason)
	c.SubstituteProductID = clonePtr(i.SubstituteProductID)
	c.SubstituteProductName = clonePtr(i.SubstituteProductName)
	c.SubstituteQuantity = clonePtr(i.SubstituteQuantity)
	c.SubstituteUnitPrice = clonePtr(i.SubstituteUnitPrice)
	c.SubstituteNotes = clonePtr(i.SubstituteNotes)
	c.SubstituteLineTotal = clonePtr(i.SubstituteLineTotal)
	c.AdjustedQuantity = clonePtr(i.AdjustedQuantity)
	c.AdjustedUnitPrice = clonePtr(i.AdjustedUnitPrice)
	c.AdjustmentReason = clonePtr(i.AdjustmentReason)
	c.AdjustedLineTotal = clonePtr(i.AdjustedLineTotal)
	c.SupplierItemNotes = clonePtr(i.SupplierItemNotes)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
