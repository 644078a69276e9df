package domain

import (
	"time"

	"paywall-gateway/pkg/money"

	"github.com/google/uuid"
)

// RefundStatus is the lifecycle of a refund request.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// RefundQuote is a priced, time-bounded refund offer (spec §3.1).
type RefundQuote struct {
	ID                 uuid.UUID    `json:"id"`
	TenantID            string       `json:"tenant_id"`
	OriginalPurchaseID string       `json:"original_purchase_id"`
	Amount              money.Money  `json:"amount"`
	Status              RefundStatus `json:"status"`
	CreatedAt           time.Time    `json:"created_at"`
	ExpiresAt           time.Time    `json:"expires_at"`
	ProcessedBy         *string      `json:"processed_by,omitempty"`
	ProcessedAt         *time.Time   `json:"processed_at,omitempty"`
	Signature           *string      `json:"signature,omitempty"`
}

// Finalized reports whether the refund has been processed.
func (r *RefundQuote) Finalized() bool {
	return r.ProcessedAt != nil
}

// StripeRefundRequest mirrors a refund issued against a card-rail charge.
type StripeRefundRequest struct {
	ID                 uuid.UUID    `json:"id"`
	TenantID            string       `json:"tenant_id"`
	OriginalPurchaseID string       `json:"original_purchase_id"`
	ChargeID            string       `json:"charge_id"`
	Amount              money.Money  `json:"amount"`
	Status              RefundStatus `json:"status"`
	CreatedAt           time.Time    `json:"created_at"`
	ExpiresAt           time.Time    `json:"expires_at"`
	ProcessedBy         *string      `json:"processed_by,omitempty"`
	ProcessedAt         *time.Time   `json:"processed_at,omitempty"`
	Signature           *string      `json:"signature,omitempty"`
}
