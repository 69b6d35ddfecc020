package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"blueprint/internal/types"

	stripe "github.com/stripe/stripe-go/v82"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeGatewayConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeGatewayConfig holds the configuration for creating a StripeGateway.
type StripeGatewayConfig struct {
	SecretKey      string
	PublishableKey string
	BaseURL        string // Override for testing; defaults to stripeAPIBase
	Logger         *slog.Logger
}

// StripeGateway implements the payment gateway boundary by making direct
// HTTP calls to the Stripe REST API through BaseClient. Plan purchases are
// one-time PaymentIntents: the intent id doubles as the order id, and the
// captured charge id is the payment reference the client sends back for
// verification.
type StripeGateway struct {
	base           *BaseClient
	secretKey      string
	publishableKey string
	baseURL        string
	logger         *slog.Logger
}

// NewStripeGateway creates a new StripeGateway. The httpClient timeout
// should be around 20 seconds.
func NewStripeGateway(httpClient *http.Client, cfg StripeGatewayConfig, opts ...BaseClientOption) *StripeGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Blueprint/1.0",
		types.ErrCodeUpstreamGateway,
		opts...,
	)

	return &StripeGateway{
		base:           base,
		secretKey:      cfg.SecretKey,
		publishableKey: cfg.PublishableKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		logger:         logger,
	}
}

// CreateOrder registers a PaymentIntent for the plan purchase. The account
// id and plan ride along as metadata so webhooks can correlate the payment
// without local state.
func (s *StripeGateway) CreateOrder(
	ctx context.Context,
	accountID string,
	plan types.PlanTier,
	amountMinor int64,
	planName string,
) (*types.PaymentOrder, error) {
	params := url.Values{}
	params.Set("amount", fmt.Sprintf("%d", amountMinor))
	params.Set("currency", "usd")
	params.Set("metadata[account_id]", accountID)
	params.Set("metadata[plan]", string(plan))
	params.Set("description", fmt.Sprintf("%s plan purchase", planName))

	resp, err := s.doPost(ctx, "/v1/payment_intents", params)
	if err != nil {
		return nil, s.wrapError("CreateOrder", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "CreateOrder")
	}

	var intent stripePaymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode payment intent response",
			err,
		)
	}

	s.logger.InfoContext(ctx, "payment order created",
		"account_id", accountID,
		"plan", string(plan),
		"order_id", intent.ID,
		"amount", intent.Amount,
	)

	return &types.PaymentOrder{
		OrderID:        intent.ID,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		PlanID:         plan,
		PlanName:       planName,
		PublishableKey: s.publishableKey,
	}, nil
}

// VerifyPayment fetches the PaymentIntent and checks that it was captured
// and that the client-supplied payment reference matches the charge Stripe
// actually recorded. A client cannot fabricate a confirmation: the proof is
// validated against the gateway, never trusted.
func (s *StripeGateway) VerifyPayment(ctx context.Context, orderID, paymentRef string) error {
	resp, err := s.doGet(ctx, "/v1/payment_intents/"+url.PathEscape(orderID), nil)
	if err != nil {
		return s.wrapError("VerifyPayment", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.handleErrorResponse(resp, "VerifyPayment")
	}

	var intent stripePaymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode payment intent response",
			err,
		)
	}

	if intent.Status != "succeeded" {
		return fmt.Errorf("payment intent %s has status %q, want succeeded", orderID, intent.Status)
	}
	if intent.LatestCharge != paymentRef {
		return fmt.Errorf("payment reference mismatch for intent %s", orderID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

// doGet performs an authenticated GET request to the Stripe API.
func (s *StripeGateway) doGet(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// doPost performs an authenticated POST request to the Stripe API with
// form-encoded body.
func (s *StripeGateway) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// setAuthHeaders sets the Stripe API authentication and version headers.
func (s *StripeGateway) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleErrorResponse maps a non-2xx Stripe response to a domain error.
func (s *StripeGateway) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp stripeErrorResponse
	_ = json.Unmarshal(bodyBytes, &errResp)

	s.logger.Error("Stripe API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"stripe_type", errResp.Error.Type,
		"stripe_code", errResp.Error.Code,
	)

	if resp.StatusCode == http.StatusNotFound {
		return types.NewAppError(
			types.ErrCodePaymentVerificationFailed,
			fmt.Sprintf("payment intent not found (%s)", operation),
			fmt.Errorf("stripe %s returned 404: %s", operation, errResp.Error.Message),
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamGateway,
		fmt.Sprintf("Stripe %s error (%d)", operation, resp.StatusCode),
		fmt.Errorf("stripe %s returned %d: %s", operation, resp.StatusCode, errResp.Error.Message),
	)
}

// wrapError wraps a BaseClient transport error with context. Errors that are
// already AppErrors (circuit breaker, retries exhausted) keep their code.
func (s *StripeGateway) wrapError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamGateway,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err),
		err,
	)
}

// ---------------------------------------------------------------------------
// Stripe Response Types (for JSON deserialization)
// ---------------------------------------------------------------------------

type stripePaymentIntent struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	LatestCharge string `json:"latest_charge"`
}
