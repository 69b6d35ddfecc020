// Package ledger owns the authoritative credit balance and free-update
// entitlements for each account. Every balance mutation goes through this
// package, and every mutation keeps credits >= 0: operations that would
// violate that are rejected before any state changes, never clamped after.
package ledger

import (
	"context"
	"log/slog"

	"blueprint/internal/types"
)

// CreditStore is the persistence boundary for per-account credit records.
// Implementations must make each mutating method atomic with respect to
// concurrent calls for the same account: the conditional debit and the
// conditional free-update consumption are single compare-and-set operations,
// not read-then-write sequences.
type CreditStore interface {
	// GetOrCreate returns the account's balance record, creating it with
	// free-tier defaults on first access.
	GetOrCreate(ctx context.Context, accountID string) (*types.CreditBalance, error)

	// DebitIfSufficient atomically decrements the balance by cost only if
	// credits >= cost. It returns the resulting balance and whether the
	// debit was applied. When applied is false the balance is unchanged
	// and the returned value is the current balance.
	DebitIfSufficient(ctx context.Context, accountID string, cost int) (balance int, applied bool, err error)

	// AddCredits increments the balance by amount and returns the result.
	AddCredits(ctx context.Context, accountID string, amount int) (int, error)

	// ConsumeFreeUpdate atomically decrements free_updates_remaining only
	// if it is positive, reporting whether one was consumed.
	ConsumeFreeUpdate(ctx context.Context, accountID string) (bool, error)

	// SetFreeUpdates sets free_updates_remaining to n.
	SetFreeUpdates(ctx context.Context, accountID string, n int) error

	// ApplyTransition atomically sets the plan, adjusts the balance per the
	// policy (reset: balance := allowance; rollover: balance += allowance),
	// and resets free updates, all in one transaction boundary. It returns
	// the resulting balance.
	ApplyTransition(ctx context.Context, accountID string, target types.PlanTier, policy types.TransitionPolicy, allowance, freeUpdates int) (int, error)

	// Delete removes the account's record entirely (account deletion).
	Delete(ctx context.Context, accountID string) error
}

// Ledger exposes the authorize/debit/credit operations gating every
// generation action. It is a thin policy layer; atomicity lives in the store.
type Ledger struct {
	store  CreditStore
	logger *slog.Logger
}

// New creates a Ledger over the given store.
func New(store CreditStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// Balance returns the account's current record, creating it lazily.
func (l *Ledger) Balance(ctx context.Context, accountID string) (*types.CreditBalance, error) {
	return l.store.GetOrCreate(ctx, accountID)
}

// Authorize is the read-only affordability check. It does not mutate; a
// passing Authorize does not reserve credits, so callers must still treat
// the later Debit as the deciding operation.
func (l *Ledger) Authorize(ctx context.Context, accountID string, cost int) error {
	bal, err := l.store.GetOrCreate(ctx, accountID)
	if err != nil {
		return err
	}
	if bal.Credits < cost {
		return types.NewInsufficientCreditsError(bal.Credits, cost)
	}
	return nil
}

// Debit atomically re-checks credits >= cost and decrements in the same
// operation, returning the resulting balance. Two concurrent debits for the
// same account can never drive the balance negative: at most one wins the
// compare-and-set when funds cover only one.
func (l *Ledger) Debit(ctx context.Context, accountID string, cost int) (int, error) {
	balance, applied, err := l.store.DebitIfSufficient(ctx, accountID, cost)
	if err != nil {
		return 0, err
	}
	if !applied {
		return balance, types.NewInsufficientCreditsError(balance, cost)
	}
	l.logger.InfoContext(ctx, "credits debited",
		"account_id", accountID,
		"cost", cost,
		"balance", balance,
	)
	return balance, nil
}

// Credit increments the balance. Crediting cannot be denied; it is used for
// monthly allowances, plan upgrades, and refund-on-failure.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount int) (int, error) {
	balance, err := l.store.AddCredits(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}
	l.logger.InfoContext(ctx, "credits added",
		"account_id", accountID,
		"amount", amount,
		"balance", balance,
	)
	return balance, nil
}

// Refund reverses a prior debit after a downstream failure. It is a plain
// credit; callers are responsible for invoking it exactly once per failed
// request (correlate by request, not by retry).
func (l *Ledger) Refund(ctx context.Context, accountID string, amount int) (int, error) {
	return l.Credit(ctx, accountID, amount)
}
