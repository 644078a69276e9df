package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookStatus is the lifecycle of a queued outbound webhook (spec §3.1).
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusSuccess    WebhookStatus = "success"
	WebhookStatusFailed     WebhookStatus = "failed"
)

// StuckProcessingWindow is the age after which a "processing" webhook row
// is presumed crashed and is reclaimed by the next dequeue (spec §3.1, §4.4
// step 5).
const StuckProcessingWindow = 5 * time.Minute

// PendingWebhook is a durably queued outbound delivery.
type PendingWebhook struct {
	ID            uuid.UUID              `json:"id"`
	TenantID      string                 `json:"tenant_id"`
	URL           string                 `json:"url"`
	Payload       map[string]interface{} `json:"payload"`
	PayloadBytes  []byte                 `json:"payload_bytes"`
	Headers       map[string]string      `json:"headers"`
	EventType     string                 `json:"event_type"`
	Status        WebhookStatus          `json:"status"`
	Attempts      int                    `json:"attempts"`
	MaxAttempts   int                    `json:"max_attempts"`
	LastError     *string                `json:"last_error,omitempty"`
	LastAttemptAt *time.Time             `json:"last_attempt_at,omitempty"`
	NextAttemptAt *time.Time             `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

// Stuck reports whether a processing row is old enough to be reclaimed.
func (w *PendingWebhook) Stuck(now time.Time) bool {
	return w.Status == WebhookStatusProcessing &&
		w.LastAttemptAt != nil &&
		now.Sub(*w.LastAttemptAt) > StuckProcessingWindow
}

// Ready reports whether a pending row's backoff has elapsed.
func (w *PendingWebhook) Ready(now time.Time) bool {
	if w.Status != WebhookStatusPending {
		return false
	}
	return w.NextAttemptAt == nil || !w.NextAttemptAt.After(now)
}

// DlqWebhook is the terminal copy of a webhook that exhausted retries.
type DlqWebhook struct {
	ID            uuid.UUID              `json:"id"`
	TenantID      string                 `json:"tenant_id"`
	URL           string                 `json:"url"`
	Payload       map[string]interface{} `json:"payload"`
	PayloadBytes  []byte                 `json:"payload_bytes"`
	Headers       map[string]string      `json:"headers"`
	EventType     string                 `json:"event_type"`
	TotalAttempts int                    `json:"total_attempts"`
	FinalError    string                 `json:"final_error"`
	CreatedAt     time.Time              `json:"created_at"`
	MovedToDlqAt  time.Time              `json:"moved_to_dlq_at"`
}
