package domain

import (
	"time"

	"paywall-gateway/pkg/money"

	"github.com/google/uuid"
)

// OrderSource names which rail produced an order's purchase_id.
type OrderSource string

const (
	OrderSourceStripe  OrderSource = "stripe"
	OrderSourceOnchain OrderSource = "onchain"
)

// OrderStatus is the order state machine of spec §3.1.
type OrderStatus string

const (
	OrderStatusPaid               OrderStatus = "paid"
	OrderStatusFulfilled          OrderStatus = "fulfilled"
	OrderStatusPartiallyFulfilled OrderStatus = "partially_fulfilled"
	OrderStatusRefunded           OrderStatus = "refunded"
	OrderStatusPartiallyRefunded  OrderStatus = "partially_refunded"
	OrderStatusCancelled          OrderStatus = "cancelled"
)

// Terminal reports whether status is one of the order machine's terminal
// states (refunded, cancelled).
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusRefunded || s == OrderStatusCancelled
}

// OrderHistoryEntry records one status transition, appended in the same
// transaction as the transition itself.
type OrderHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	At        time.Time   `json:"at"`
	Note      string      `json:"note,omitempty"`
}

// OrderCustomer captures optional customer details from checkout metadata.
type OrderCustomer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// OrderShipping captures optional shipping details from checkout metadata.
type OrderShipping struct {
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
}

// OrderLineItem is one resolved, priced line of an order.
type OrderLineItem struct {
	ProductID string      `json:"product_id"`
	VariantID *string     `json:"variant_id,omitempty"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unit_price"`
}

// Order is the durable record of a completed purchase (spec §3.1).
// (tenant_id, source, purchase_id) is unique and is the idempotency key
// for order creation.
type Order struct {
	ID              uuid.UUID           `json:"id"`
	TenantID        string              `json:"tenant_id"`
	Source          OrderSource         `json:"source"`
	PurchaseID      string              `json:"purchase_id"`
	ResourceID      string              `json:"resource_id"`
	Status          OrderStatus         `json:"status"`
	Items           []OrderLineItem     `json:"items"`
	Amount          money.Money         `json:"amount"`
	Customer        *OrderCustomer      `json:"customer,omitempty"`
	Shipping        *OrderShipping      `json:"shipping,omitempty"`
	History         []OrderHistoryEntry `json:"history"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	StatusUpdatedAt time.Time           `json:"status_updated_at"`
}
