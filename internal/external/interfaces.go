package external

import (
	"context"

	"blueprint/internal/types"
)

// ---------------------------------------------------------------------------
// Document Generation
// ---------------------------------------------------------------------------

// DocumentGenerator abstracts the AI document generation service.
// Implementations translate a structured prompt into finished markdown.
// The generator knows nothing about credits; billing belongs to the caller.
type DocumentGenerator interface {
	// Generate produces one document for the given payload. A quota error
	// from the provider (our API key's allowance, not the user's credits)
	// surfaces as ErrCodeUpstreamGeneratorQuota so handlers can distinguish
	// it from a credit denial.
	Generate(ctx context.Context, payload GeneratePayload) (content string, err error)
}

// GeneratePayload is the request body sent to the generation service.
type GeneratePayload struct {
	Tool        types.ToolKind `json:"tool"`
	ProjectName string         `json:"project_name"`
	Prompt      string         `json:"prompt"`
}

// ---------------------------------------------------------------------------
// Payment Gateway Webhooks
// ---------------------------------------------------------------------------

// WebhookVerifier abstracts payment webhook signature checking.
type WebhookVerifier interface {
	// Verify validates a webhook payload against the provided signature
	// header and signing secret. Returns nil on success, an error on failure.
	Verify(payload []byte, header string, secret string) error
}

// Payment event type constants prevent magic strings in webhook handlers.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)
