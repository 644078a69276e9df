// Package schemasql implements the token-aware SQL identifier substitution
// spec §4.1/§6.4 requires: table names are configurable per deployment, and
// a naive strings.ReplaceAll would corrupt identifiers that merely contain
// the configured name as a substring (e.g. renaming "cart_quotes" must not
// touch "cart_quotes_id" or "archived_cart_quotes").
package schemasql

import "strings"

// SchemaMapping names every table the postgres Store touches. Any field left
// empty falls back to its default identifier.
type SchemaMapping struct {
	CartQuotes             string
	Orders                 string
	PaymentTransactions    string
	Products               string
	InventoryReservations  string
	InventoryAdjustments   string
	RefundQuotes           string
	StripeRefundRequests   string
	Subscriptions          string
	WebhookQueue           string
	WebhookDLQ             string
	IdempotencyKeys        string
	AdminNonces            string
	CreditsHolds           string
	GiftCards              string
}

// defaults returns the identity mapping: every table keeps its spec name.
func defaults() SchemaMapping {
	return SchemaMapping{
		CartQuotes:            "cart_quotes",
		Orders:                "orders",
		PaymentTransactions:   "payment_transactions",
		Products:              "products",
		InventoryReservations: "inventory_reservations",
		InventoryAdjustments:  "inventory_adjustments",
		RefundQuotes:          "refund_quotes",
		StripeRefundRequests:  "stripe_refund_requests",
		Subscriptions:         "subscriptions",
		WebhookQueue:          "webhook_queue",
		WebhookDLQ:            "webhook_dlq",
		IdempotencyKeys:       "idempotency_keys",
		AdminNonces:           "admin_nonces",
		CreditsHolds:          "credits_holds",
		GiftCards:             "gift_cards",
	}
}

// NewMapping merges overrides onto the default mapping; any empty override
// field keeps the default identifier.
func NewMapping(overrides SchemaMapping) SchemaMapping {
	m := defaults()
	ov := []*string{
		&overrides.CartQuotes, &overrides.Orders, &overrides.PaymentTransactions,
		&overrides.Products, &overrides.InventoryReservations, &overrides.InventoryAdjustments,
		&overrides.RefundQuotes, &overrides.StripeRefundRequests, &overrides.Subscriptions,
		&overrides.WebhookQueue, &overrides.WebhookDLQ, &overrides.IdempotencyKeys,
		&overrides.AdminNonces, &overrides.CreditsHolds, &overrides.GiftCards,
	}
	def := []*string{
		&m.CartQuotes, &m.Orders, &m.PaymentTransactions,
		&m.Products, &m.InventoryReservations, &m.InventoryAdjustments,
		&m.RefundQuotes, &m.StripeRefundRequests, &m.Subscriptions,
		&m.WebhookQueue, &m.WebhookDLQ, &m.IdempotencyKeys,
		&m.AdminNonces, &m.CreditsHolds, &m.GiftCards,
	}
	for i, o := range ov {
		if *o != "" {
			*def[i] = *o
		}
	}
	return m
}

// pairs returns the (defaultName, mappedName) pairs the mapping defines,
// used to drive Rewrite without reflection.
func (m SchemaMapping) pairs() [][2]string {
	d := defaults()
	return [][2]string{
		{d.CartQuotes, m.CartQuotes},
		{d.Orders, m.Orders},
		{d.PaymentTransactions, m.PaymentTransactions},
		{d.Products, m.Products},
		{d.InventoryReservations, m.InventoryReservations},
		{d.InventoryAdjustments, m.InventoryAdjustments},
		{d.RefundQuotes, m.RefundQuotes},
		{d.StripeRefundRequests, m.StripeRefundRequests},
		{d.Subscriptions, m.Subscriptions},
		{d.WebhookQueue, m.WebhookQueue},
		{d.WebhookDLQ, m.WebhookDLQ},
		{d.IdempotencyKeys, m.IdempotencyKeys},
		{d.AdminNonces, m.AdminNonces},
		{d.CreditsHolds, m.CreditsHolds},
		{d.GiftCards, m.GiftCards},
	}
}

// Rewrite substitutes every default table identifier in query with its
// mapped name, bounded by non-identifier characters on both sides so that
// "cart_quotes" never matches inside "cart_quotes_id" or "archived_cart_quotes".
func (m SchemaMapping) Rewrite(query string) string {
	out := query
	for _, p := range m.pairs() {
		from, to := p[0], p[1]
		if from == to {
			continue
		}
		out = replaceIdentifier(out, from, to)
	}
	return out
}

func isIdentChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// replaceIdentifier replaces every bounded occurrence of "from" in s with
// "to": an occurrence counts only if the byte immediately before and after
// it (if any) is not an identifier character.
func replaceIdentifier(s, from, to string) string {
	if from == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], from)
		if idx < 0 {
			b.WriteString(s[i:])
			break
		}
		start := i + idx
		end := start + len(from)
		boundedBefore := start == 0 || !isIdentChar(s[start-1])
		boundedAfter := end == len(s) || !isIdentChar(s[end])
		if boundedBefore && boundedAfter {
			b.WriteString(s[i:start])
			b.WriteString(to)
			i = end
		} else {
			b.WriteString(s[i : start+1])
			i = start + 1
		}
	}
	return b.String()
}
