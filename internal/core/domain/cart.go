package domain

import (
	"time"

	"paywall-gateway/pkg/money"

	"github.com/google/uuid"
)

// CartItem is one line of a CartQuote.
type CartItem struct {
	ResourceID      string                 `json:"resource_id"`
	VariantID       *string                `json:"variant_id,omitempty"`
	Quantity        int                    `json:"quantity"`
	UnitPrice       money.Money            `json:"unit_price"`
	OriginalPrice   *money.Money           `json:"original_price,omitempty"`
	Description     *string                `json:"description,omitempty"`
	AppliedCoupons  []string               `json:"applied_coupons"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// CartQuote is an ephemeral priced cart per spec §3.1.
type CartQuote struct {
	ID            uuid.UUID              `json:"id"`
	TenantID      string                 `json:"tenant_id"`
	Items         []CartItem             `json:"items"`
	Total         money.Money            `json:"total"`
	Metadata      map[string]interface{} `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
	ExpiresAt     time.Time              `json:"expires_at"`
	WalletPaidBy  *string                `json:"wallet_paid_by,omitempty"`
}

// Expired reports whether the quote's TTL has elapsed as of now.
func (c *CartQuote) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Paid reports whether a wallet has already claimed this cart.
func (c *CartQuote) Paid() bool {
	return c.WalletPaidBy != nil
}

// ResourceIDString returns the memo-binding resource identifier for this cart,
// per spec §4.5 ("resource_id = cart:<id>").
func (c *CartQuote) ResourceIDString() string {
	return "cart:" + c.ID.String()
}
