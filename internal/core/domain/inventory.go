package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle of an InventoryReservation.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationConverted ReservationStatus = "converted"
	ReservationReleased  ReservationStatus = "released"
)

// InventoryReservation holds stock against a cart pending payment (spec §3.1).
// Must be created under SELECT ... FOR UPDATE of the product row.
type InventoryReservation struct {
	ID        uuid.UUID         `json:"id"`
	TenantID  string            `json:"tenant_id"`
	ProductID string            `json:"product_id"`
	VariantID *string           `json:"variant_id,omitempty"`
	Quantity  int               `json:"quantity"`
	CartID    uuid.UUID         `json:"cart_id"`
	Status    ReservationStatus `json:"status"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
}

// Expired reports whether an active reservation's hold has lapsed.
func (r *InventoryReservation) Expired(now time.Time) bool {
	return r.Status == ReservationActive && now.After(r.ExpiresAt)
}

// InventoryAdjustment is an append-only audit row for every stock change.
type InventoryAdjustment struct {
	ID              uuid.UUID `json:"id"`
	TenantID        string    `json:"tenant_id"`
	ProductID       string    `json:"product_id"`
	QuantityBefore  int       `json:"quantity_before"`
	QuantityAfter   int       `json:"quantity_after"`
	Delta           int       `json:"delta"`
	Reason          string    `json:"reason"`
	Actor           string    `json:"actor"`
	CreatedAt       time.Time `json:"created_at"`
}

// Product is the read-only catalog entity the core consumes (spec §1: the
// catalog read path is an external collaborator); the fields below are the
// subset C1/C5 need to price and lock inventory.
type Product struct {
	TenantID           string `json:"tenant_id"`
	ID                 string `json:"id"`
	InventoryQuantity  int    `json:"inventory_quantity"`
	BackorderAllowed   bool   `json:"backorder_allowed"`
}
