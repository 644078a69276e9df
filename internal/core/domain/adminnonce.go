package domain

import (
	"time"

	"github.com/google/uuid"
)

// AdminNonce is a single-use token backing a privileged admin action
// (spec §3.1); consuming it atomically transitions ConsumedAt and fails on
// replay.
type AdminNonce struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Purpose   string     `json:"purpose"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// Consumed reports whether the nonce has already been used.
func (n *AdminNonce) Consumed() bool {
	return n.ConsumedAt != nil
}
