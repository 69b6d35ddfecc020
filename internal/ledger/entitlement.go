package ledger

import (
	"context"
	"log/slog"
)

// UpdateFunding says how a report update will be paid for.
type UpdateFunding int

const (
	// FundingFreeUpdate means a plan-granted free update covers the action;
	// no credits are charged.
	FundingFreeUpdate UpdateFunding = iota
	// FundingCredits means the update must be paid for with credits.
	FundingCredits
)

// Entitlements tracks the consumable free-update allowance per billing cycle.
// A free update is always preferred over spending credits.
type Entitlements struct {
	store  CreditStore
	logger *slog.Logger
}

// NewEntitlements creates an Entitlements tracker over the given store.
func NewEntitlements(store CreditStore, logger *slog.Logger) *Entitlements {
	if logger == nil {
		logger = slog.Default()
	}
	return &Entitlements{store: store, logger: logger}
}

// PlanFunding reports how an update would be funded right now, without
// consuming anything. Used to authorize credits up front when no free
// update is available. The answer can be invalidated by a concurrent
// update; Commit re-resolves atomically.
func (e *Entitlements) PlanFunding(ctx context.Context, accountID string) (UpdateFunding, error) {
	bal, err := e.store.GetOrCreate(ctx, accountID)
	if err != nil {
		return FundingCredits, err
	}
	if bal.FreeUpdatesRemaining > 0 {
		return FundingFreeUpdate, nil
	}
	return FundingCredits, nil
}

// ConsumeFreeUpdateOrCharge atomically consumes one free update if any
// remain; otherwise it debits updateCost credits through the ledger. The
// consumption check and decrement are a single compare-and-set, so two
// concurrent updates cannot both spend the last free update.
//
// Returns the funding that was actually applied and the resulting credit
// balance (unchanged when a free update covered the action).
func (e *Entitlements) ConsumeFreeUpdateOrCharge(ctx context.Context, l *Ledger, accountID string, updateCost int) (UpdateFunding, int, error) {
	consumed, err := e.store.ConsumeFreeUpdate(ctx, accountID)
	if err != nil {
		return FundingCredits, 0, err
	}
	if consumed {
		e.logger.InfoContext(ctx, "free update consumed", "account_id", accountID)
		bal, err := e.store.GetOrCreate(ctx, accountID)
		if err != nil {
			return FundingFreeUpdate, 0, err
		}
		return FundingFreeUpdate, bal.Credits, nil
	}

	balance, err := l.Debit(ctx, accountID, updateCost)
	if err != nil {
		return FundingCredits, balance, err
	}
	return FundingCredits, balance, nil
}

// ResetCycle resets the free-update allowance to the plan's grant. Billing
// cycle rollover itself is driven by an external scheduler; this is the hook
// it calls.
func (e *Entitlements) ResetCycle(ctx context.Context, accountID string, freeUpdatesPerCycle int) error {
	if err := e.store.SetFreeUpdates(ctx, accountID, freeUpdatesPerCycle); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "free updates reset",
		"account_id", accountID,
		"free_updates", freeUpdatesPerCycle,
	)
	return nil
}
