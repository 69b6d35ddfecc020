package external

import (
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeVerifier implements WebhookVerifier using stripe-go's webhook
// signature verification: HMAC-SHA256 over the timestamped payload, with
// timestamp tolerance checking against replay.
type StripeVerifier struct{}

// Verify validates a payment webhook payload against the Stripe-Signature
// header and signing secret.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return webhook.ValidatePayload(payload, header, secret)
}

var _ WebhookVerifier = (*StripeVerifier)(nil)
