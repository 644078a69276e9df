package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionPaymentMethod names the rail funding a subscription.
type SubscriptionPaymentMethod string

const (
	SubscriptionPaymentCard    SubscriptionPaymentMethod = "card"
	SubscriptionPaymentOnchain SubscriptionPaymentMethod = "onchain"
	SubscriptionPaymentCredits SubscriptionPaymentMethod = "credits"
)

// SubscriptionBillingPeriod names the recurrence unit.
type SubscriptionBillingPeriod string

const (
	BillingPeriodDay   SubscriptionBillingPeriod = "day"
	BillingPeriodWeek  SubscriptionBillingPeriod = "week"
	BillingPeriodMonth SubscriptionBillingPeriod = "month"
	BillingPeriodYear  SubscriptionBillingPeriod = "year"
)

// SubscriptionStatus is the lifecycle of spec §4.6/§3.1:
// trialing -> active -> past_due -> {active | unpaid | cancelled}.
type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionUnpaid   SubscriptionStatus = "unpaid"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the recurring-billing aggregate of spec §3.1.
type Subscription struct {
	ID                     uuid.UUID                 `json:"id"`
	TenantID                string                    `json:"tenant_id"`
	ProductID               string                    `json:"product_id"`
	PlanID                  *string                   `json:"plan_id,omitempty"`
	Wallet                  *string                   `json:"wallet,omitempty"`
	UserID                  *string                   `json:"user_id,omitempty"`
	ExternalCustomerID      *string                   `json:"external_customer_id,omitempty"`
	ExternalSubscriptionID  *string                   `json:"external_subscription_id,omitempty"`
	PaymentMethod           SubscriptionPaymentMethod `json:"payment_method"`
	BillingPeriod           SubscriptionBillingPeriod `json:"billing_period"`
	BillingInterval         int                       `json:"billing_interval"`
	Status                  SubscriptionStatus        `json:"status"`
	CurrentPeriodStart      time.Time                 `json:"current_period_start"`
	CurrentPeriodEnd        time.Time                 `json:"current_period_end"`
	TrialEnd                *time.Time                `json:"trial_end,omitempty"`
	CancelledAt             *time.Time                `json:"cancelled_at,omitempty"`
	CancelAtPeriodEnd       bool                      `json:"cancel_at_period_end"`
	PaymentSignature        *string                   `json:"payment_signature,omitempty"`
	Metadata                map[string]interface{}    `json:"metadata"`
}

// ExpiredLocal reports whether a local (on-chain/credits) subscription's
// current period has lapsed as of now, the trigger the background worker
// (spec §4.6) uses to advance the status machine.
func (s *Subscription) ExpiredLocal(now time.Time) bool {
	return s.PaymentMethod != SubscriptionPaymentCard && now.After(s.CurrentPeriodEnd)
}
