// Package checkout creates hosted-checkout sessions for the card rail
// (spec §4.4: "for hosted checkout, create the external session with
// metadata {tenant_id, resource_id: cart:<id>}").
package checkout

import (
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// StripeSessionFactory builds hosted-checkout sessions via the Stripe API.
type StripeSessionFactory struct {
	apiKey string
}

func NewStripeSessionFactory(apiKey string) *StripeSessionFactory {
	return &StripeSessionFactory{apiKey: apiKey}
}

// Create returns the hosted checkout URL for one cart.
func (f *StripeSessionFactory) Create(tenantID, resourceID, successURL string) (string, error) {
	stripe.Key = f.apiKey

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		Metadata: map[string]string{
			"tenant_id":   tenantID,
			"resource_id": resourceID,
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}
