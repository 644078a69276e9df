package domain

import (
	"time"

	"paywall-gateway/pkg/money"
)

// PaymentTransaction records a successful payment against a resource.
// Signature is the natural id: a blockchain tx signature for on-chain
// rails, or "stripe:<session_id>" for hosted checkout (spec §3.1).
type PaymentTransaction struct {
	Signature  string                 `json:"signature"`
	TenantID   string                 `json:"tenant_id"`
	ResourceID string                 `json:"resource_id"`
	Wallet     string                 `json:"wallet"`
	UserID     *string                `json:"user_id,omitempty"`
	Amount     money.Money            `json:"amount"`
	CreatedAt  time.Time              `json:"created_at"`
	Metadata   map[string]interface{} `json:"metadata"`
}
