package external

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"blueprint/internal/types"
)

// ---------------------------------------------------------------------------
// Stub Implementations
//
// Stub implementations allow the application to boot in local/test mode
// without requiring real external service credentials. They log all
// actions and return predictable, safe default values.
// ---------------------------------------------------------------------------

// StubGenerator implements DocumentGenerator by returning canned markdown.
// Used when config.IsTestMode is true or APP_ENV=local.
type StubGenerator struct {
	logger *slog.Logger
}

// NewStubGenerator creates a new StubGenerator.
func NewStubGenerator(logger *slog.Logger) *StubGenerator {
	return &StubGenerator{logger: logger}
}

func (s *StubGenerator) Generate(ctx context.Context, payload GeneratePayload) (string, error) {
	s.logger.InfoContext(ctx, "stub: Generate called",
		"tool", string(payload.Tool),
		"project_name", payload.ProjectName,
	)
	return fmt.Sprintf("# %s\n\n%s for %s (stub output)\n",
		payload.ProjectName, payload.Tool.DisplayName(), payload.ProjectName), nil
}

// StubPaymentGateway creates fake orders and accepts every verification.
// Used when config.IsTestMode is true or APP_ENV=local.
type StubPaymentGateway struct {
	logger *slog.Logger
}

// NewStubPaymentGateway creates a new StubPaymentGateway.
func NewStubPaymentGateway(logger *slog.Logger) *StubPaymentGateway {
	return &StubPaymentGateway{logger: logger}
}

func (s *StubPaymentGateway) CreateOrder(ctx context.Context, accountID string, plan types.PlanTier, amountMinor int64, planName string) (*types.PaymentOrder, error) {
	s.logger.InfoContext(ctx, "stub: CreateOrder called",
		"account_id", accountID,
		"plan", string(plan),
		"amount", amountMinor,
	)
	return &types.PaymentOrder{
		OrderID:        "pi_stub_" + uuid.NewString(),
		Amount:         amountMinor,
		Currency:       "usd",
		PlanID:         plan,
		PlanName:       planName,
		PublishableKey: "pk_test_stub",
	}, nil
}

func (s *StubPaymentGateway) VerifyPayment(ctx context.Context, orderID, paymentRef string) error {
	s.logger.InfoContext(ctx, "stub: VerifyPayment called",
		"order_id", orderID,
		"payment_ref", paymentRef,
	)
	return nil
}

// StubVerifier accepts every webhook signature. Local mode only.
type StubVerifier struct{}

func (v *StubVerifier) Verify(payload []byte, header string, secret string) error {
	return nil
}

var _ DocumentGenerator = (*StubGenerator)(nil)
var _ WebhookVerifier = (*StubVerifier)(nil)
