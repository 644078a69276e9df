package domain

import "time"

// CreditsHold binds an externally-issued hold id to a tenant/user/resource
// tuple (spec §3.1). Storing a hold is idempotent on (tenant_id, hold_id)
// and only refreshes ExpiresAt if the full tuple matches, which blocks
// hold-id reuse against a different binding.
type CreditsHold struct {
	TenantID    string    `json:"tenant_id"`
	HoldID      string    `json:"hold_id"`
	UserID      string    `json:"user_id"`
	ResourceID  string    `json:"resource_id"`
	Amount      int64     `json:"amount"`
	AmountAsset string    `json:"amount_asset"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Matches reports whether other binds to the same tuple as h (ignoring
// ExpiresAt), the test that gates whether a duplicate store call may
// refresh the hold's expiry.
func (h CreditsHold) Matches(other CreditsHold) bool {
	return h.TenantID == other.TenantID &&
		h.HoldID == other.HoldID &&
		h.UserID == other.UserID &&
		h.ResourceID == other.ResourceID &&
		h.Amount == other.Amount &&
		h.AmountAsset == other.AmountAsset
}

// GiftCard is the balance-bearing entity adjust_gift_card_balance_atomic
// operates on (spec §4.1, §8).
type GiftCard struct {
	TenantID string `json:"tenant_id"`
	Code     string `json:"code"`
	Balance  int64  `json:"balance"`
}
