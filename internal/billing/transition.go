package billing

import (
	"context"
	"log/slog"

	"blueprint/internal/ledger"
	"blueprint/internal/types"
)

// PaymentGateway is the boundary to the external payment provider. The core
// never sees card data; it only produces intent references and verifies
// proofs after the fact.
type PaymentGateway interface {
	// CreateOrder registers a checkout intent for purchasing the given plan
	// and returns the reference the client needs to open the gateway's
	// checkout UI.
	CreateOrder(ctx context.Context, accountID string, plan types.PlanTier, amountMinor int64, planName string) (*types.PaymentOrder, error)

	// VerifyPayment checks with the gateway that paymentRef is a captured
	// payment for orderID. A nil return means the proof is genuine.
	VerifyPayment(ctx context.Context, orderID, paymentRef string) error
}

// AppliedPaymentStore records which payment references have already been
// credited. Record is insert-once: the second call for the same reference
// reports applied=false without side effects.
type AppliedPaymentStore interface {
	Record(ctx context.Context, paymentRef, accountID string, plan types.PlanTier) (applied bool, err error)
}

// TransitionResult describes the account state after a plan change.
type TransitionResult struct {
	Plan                 types.PlanTier `json:"plan"`
	Credits              int            `json:"new_credits"`
	FreeUpdatesRemaining int            `json:"free_updates_remaining"`
	// AlreadyApplied is set when the same payment reference was confirmed
	// before. The duplicate is treated as success, not an error: the
	// payment was real, it just must never credit twice.
	AlreadyApplied bool `json:"-"`
}

// TransitionManager executes upgrades and downgrades between plan tiers,
// applying the rollover-vs-reset balance policy and guarding payment
// confirmation with per-reference idempotency.
type TransitionManager struct {
	catalog  PlanCatalog
	store    ledger.CreditStore
	payments AppliedPaymentStore
	gateway  PaymentGateway
	logger   *slog.Logger
}

// NewTransitionManager wires a TransitionManager.
func NewTransitionManager(
	catalog PlanCatalog,
	store ledger.CreditStore,
	payments AppliedPaymentStore,
	gateway PaymentGateway,
	logger *slog.Logger,
) *TransitionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionManager{
		catalog:  catalog,
		store:    store,
		payments: payments,
		gateway:  gateway,
		logger:   logger,
	}
}

// InitiateUpgrade creates a payment intent for the target plan. The actual
// checkout happens client-side against the gateway; credits are granted only
// on ConfirmUpgrade (or the gateway webhook), never here.
func (m *TransitionManager) InitiateUpgrade(ctx context.Context, accountID string, target types.PlanTier) (*types.PaymentOrder, error) {
	if !types.ValidPlanTier(target) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPlan, "unknown plan: "+string(target), nil)
	}
	limits := m.catalog.Limits(target)
	if limits.PriceMinorUnits == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPlan, "plan does not require payment: "+string(target), nil)
	}

	order, err := m.gateway.CreateOrder(ctx, accountID, target, limits.PriceMinorUnits, limits.Name)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "upgrade initiated",
		"account_id", accountID,
		"target_plan", string(target),
		"order_id", order.OrderID,
	)
	return order, nil
}

// ConfirmUpgrade verifies the payment proof, then credits the target plan's
// allowance, sets the plan, and resets the free-update grant. The credit is
// idempotent per payment reference: confirming the same payment twice
// (client verify racing the gateway webhook, or webhook redelivery) applies
// it exactly once.
func (m *TransitionManager) ConfirmUpgrade(ctx context.Context, accountID string, target types.PlanTier, orderID, paymentRef string) (*TransitionResult, error) {
	if !types.ValidPlanTier(target) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPlan, "unknown plan: "+string(target), nil)
	}

	if err := m.gateway.VerifyPayment(ctx, orderID, paymentRef); err != nil {
		m.logger.WarnContext(ctx, "payment verification failed",
			"account_id", accountID,
			"order_id", orderID,
			"payment_ref", paymentRef,
			"error", err,
		)
		return nil, types.NewAppError(
			types.ErrCodePaymentVerificationFailed,
			"payment could not be verified",
			err,
		)
	}

	applied, err := m.payments.Record(ctx, paymentRef, accountID, target)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Already credited. Report current state without touching the ledger.
		bal, err := m.store.GetOrCreate(ctx, accountID)
		if err != nil {
			return nil, err
		}
		m.logger.InfoContext(ctx, "duplicate payment confirmation ignored",
			"account_id", accountID,
			"payment_ref", paymentRef,
		)
		return &TransitionResult{
			Plan:                 bal.Plan,
			Credits:              bal.Credits,
			FreeUpdatesRemaining: bal.FreeUpdatesRemaining,
			AlreadyApplied:       true,
		}, nil
	}

	limits := m.catalog.Limits(target)
	credits, err := m.store.ApplyTransition(ctx, accountID, target, types.PolicyRollover, limits.MonthlyCreditAllowance, limits.FreeUpdatesPerCycle)
	if err != nil {
		// The payment reference is recorded but the balance was not
		// updated. A retry will be swallowed by the idempotency guard, so
		// this needs manual reconciliation.
		m.logger.ErrorContext(ctx, "LEDGER_ALERT: payment recorded but transition failed",
			"account_id", accountID,
			"payment_ref", paymentRef,
			"target_plan", string(target),
			"error", err,
		)
		return nil, err
	}

	m.logger.InfoContext(ctx, "upgrade confirmed",
		"account_id", accountID,
		"plan", string(target),
		"credits", credits,
	)
	return &TransitionResult{
		Plan:                 target,
		Credits:              credits,
		FreeUpdatesRemaining: limits.FreeUpdatesPerCycle,
	}, nil
}

// ChangePlan executes a transition that needs no payment (downgrades and
// lateral moves). Downgrading to free is destructive: the balance is reset
// to exactly the free allowance and the prior balance discarded — callers
// must have warned the user. Any other target rolls the existing balance
// over, adding the destination allowance. Plan, balance, and free updates
// change atomically.
func (m *TransitionManager) ChangePlan(ctx context.Context, accountID string, target types.PlanTier) (*TransitionResult, error) {
	if !types.ValidPlanTier(target) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPlan, "unknown plan: "+string(target), nil)
	}

	limits := m.catalog.Limits(target)
	policy := types.PolicyFor(target)

	credits, err := m.store.ApplyTransition(ctx, accountID, target, policy, limits.MonthlyCreditAllowance, limits.FreeUpdatesPerCycle)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "plan changed",
		"account_id", accountID,
		"plan", string(target),
		"policy", string(policy),
		"credits", credits,
	)
	return &TransitionResult{
		Plan:                 target,
		Credits:              credits,
		FreeUpdatesRemaining: limits.FreeUpdatesPerCycle,
	}, nil
}
