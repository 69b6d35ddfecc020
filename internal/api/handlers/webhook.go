// This file implements the payment webhook handler. It is NOT behind auth
// middleware -- the gateway calls it directly. Security is provided by
// verifying the Stripe-Signature header (HMAC-SHA256) against the webhook
// signing secret.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blueprint/internal/core"
	"blueprint/internal/external"
	"blueprint/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a webhook payload (64 KB).
// Payment intent events are small; this limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// paymentWebhookEvent is the subset of the gateway's event envelope this
// handler reads.
type paymentWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID           string            `json:"id"`
			LatestCharge string            `json:"latest_charge"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// PaymentWebhookHandler processes asynchronous payment events from the
// gateway. Confirmation through this path is idempotent with the synchronous
// /v1/payment/verify path: whichever lands first credits the account, the
// other becomes a no-op.
type PaymentWebhookHandler struct {
	verifier    external.WebhookVerifier
	transitions PlanTransitioner
	secret      string
	logger      *slog.Logger
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler with the
// provided dependencies.
func NewPaymentWebhookHandler(
	verifier external.WebhookVerifier,
	transitions PlanTransitioner,
	secret string,
	logger *slog.Logger,
) *PaymentWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentWebhookHandler{
		verifier:    verifier,
		transitions: transitions,
		secret:      secret,
		logger:      logger,
	}
}

// RegisterRoutes mounts the payment webhook endpoint. Mounted under the
// /webhooks group, which bypasses bearer authentication.
func (h *PaymentWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payment", h.Handle)
}

// Handle processes incoming payment webhook events.
//
//  1. Reads the raw body and the Stripe-Signature header.
//  2. Verifies the signature using the webhook signing secret.
//  3. Parses the event JSON and routes by event type.
//  4. Returns 200 OK once the event is verified, even when internal
//     processing fails: the failure is logged for investigation, and
//     acknowledging receipt prevents infinite gateway retry loops.
func (h *PaymentWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event paymentWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing payment webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

// routeEvent dispatches the webhook event by type. Unrecognized event types
// are acknowledged and skipped.
func (h *PaymentWebhookHandler) routeEvent(ctx context.Context, event *paymentWebhookEvent) error {
	switch event.Type {
	case external.EventPaymentSucceeded:
		return h.handlePaymentSucceeded(ctx, event)
	case external.EventPaymentFailed:
		h.logger.InfoContext(ctx, "payment failed event received",
			"event_id", event.ID,
			"intent_id", event.Data.Object.ID,
		)
		return nil
	default:
		h.logger.DebugContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handlePaymentSucceeded applies the plan upgrade for a captured payment.
// The account and target plan ride in the intent metadata set at order
// creation; the charge reference provides idempotency.
func (h *PaymentWebhookHandler) handlePaymentSucceeded(ctx context.Context, event *paymentWebhookEvent) error {
	obj := event.Data.Object

	accountID := obj.Metadata["account_id"]
	plan := types.PlanTier(obj.Metadata["plan"])
	if accountID == "" || !types.ValidPlanTier(plan) {
		return fmt.Errorf("event %s carries incomplete metadata (account_id=%q plan=%q)",
			event.ID, accountID, obj.Metadata["plan"])
	}
	if obj.LatestCharge == "" {
		return fmt.Errorf("event %s carries no charge reference", event.ID)
	}

	result, err := h.transitions.ConfirmUpgrade(ctx, accountID, plan, obj.ID, obj.LatestCharge)
	if err != nil {
		return fmt.Errorf("confirming upgrade for account %s: %w", accountID, err)
	}

	if result.AlreadyApplied {
		h.logger.InfoContext(ctx, "webhook payment already credited",
			"event_id", event.ID,
			"account_id", accountID,
		)
		return nil
	}

	h.logger.InfoContext(ctx, "webhook payment credited",
		"event_id", event.ID,
		"account_id", accountID,
		"plan", string(result.Plan),
		"new_credits", result.Credits,
	)
	return nil
}
