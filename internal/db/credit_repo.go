package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"blueprint/internal/types"
)

// CreditRepo is the Postgres credit store. One row per account holds the
// balance, plan, and free-update counter; every mutation is a single
// statement whose WHERE clause carries the invariant, so concurrent requests
// contend on the row instead of racing in application code.
//
// Key invariants:
//   - The balance never goes negative: debits are conditional UPDATEs that
//     match zero rows when funds are insufficient.
//   - Accounts are created lazily with free-tier defaults on first touch.
type CreditRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewCreditRepo creates a CreditRepo backed by the given database connection
// (pool or transaction).
func NewCreditRepo(db DBTX, logger *slog.Logger) *CreditRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditRepo{db: db, logger: logger}
}

const freeTierDefaultCredits = 50

// ensure creates the account row with free-tier defaults if it does not
// exist. Safe to call concurrently; the losing inserter is a no-op.
func (r *CreditRepo) ensure(ctx context.Context, accountID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO credit_accounts (account_id, credits, plan, free_updates_remaining, updated_at)
		 VALUES ($1, $2, $3, 0, NOW())
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID,
		freeTierDefaultCredits,
		types.PlanFree,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to initialize credit account", err)
	}
	return nil
}

// GetOrCreate returns the account's balance record, creating it with
// free-tier defaults on first use.
func (r *CreditRepo) GetOrCreate(ctx context.Context, accountID string) (*types.CreditBalance, error) {
	if err := r.ensure(ctx, accountID); err != nil {
		return nil, err
	}

	var b types.CreditBalance
	err := r.db.QueryRow(ctx,
		`SELECT account_id, credits, plan, free_updates_remaining, updated_at
		 FROM credit_accounts
		 WHERE account_id = $1`,
		accountID,
	).Scan(&b.AccountID, &b.Credits, &b.Plan, &b.FreeUpdatesRemaining, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAccount, "credit account not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load credit account", err)
	}
	return &b, nil
}

// DebitIfSufficient atomically subtracts cost if the balance covers it.
// Returns the resulting balance and whether the debit applied. A denial is
// not an error: the caller decides how to report it.
func (r *CreditRepo) DebitIfSufficient(ctx context.Context, accountID string, cost int) (int, bool, error) {
	if err := r.ensure(ctx, accountID); err != nil {
		return 0, false, err
	}

	var remaining int
	err := r.db.QueryRow(ctx,
		`UPDATE credit_accounts
		 SET credits = credits - $2,
		     updated_at = NOW()
		 WHERE account_id = $1
		   AND credits >= $2
		 RETURNING credits`,
		accountID,
		cost,
	).Scan(&remaining)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, types.NewAppError(types.ErrCodeInternalDB, "failed to debit credits", err)
	}

	// Insufficient funds. Read the current balance so the caller can report
	// what the account actually has.
	var current int
	err = r.db.QueryRow(ctx,
		`SELECT credits FROM credit_accounts WHERE account_id = $1`,
		accountID,
	).Scan(&current)
	if err != nil {
		return 0, false, types.NewAppError(types.ErrCodeInternalDB, "failed to read balance after denied debit", err)
	}
	return current, false, nil
}

// AddCredits adds amount to the balance and returns the new total.
func (r *CreditRepo) AddCredits(ctx context.Context, accountID string, amount int) (int, error) {
	if err := r.ensure(ctx, accountID); err != nil {
		return 0, err
	}

	var total int
	err := r.db.QueryRow(ctx,
		`UPDATE credit_accounts
		 SET credits = credits + $2,
		     updated_at = NOW()
		 WHERE account_id = $1
		 RETURNING credits`,
		accountID,
		amount,
	).Scan(&total)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to add credits", err)
	}
	return total, nil
}

// ConsumeFreeUpdate decrements the free-update counter if any remain.
// Returns whether one was consumed. Concurrent callers contend on the row;
// the counter never goes below zero.
func (r *CreditRepo) ConsumeFreeUpdate(ctx context.Context, accountID string) (bool, error) {
	if err := r.ensure(ctx, accountID); err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE credit_accounts
		 SET free_updates_remaining = free_updates_remaining - 1,
		     updated_at = NOW()
		 WHERE account_id = $1
		   AND free_updates_remaining > 0`,
		accountID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to consume free update", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetFreeUpdates sets the free-update counter to n.
func (r *CreditRepo) SetFreeUpdates(ctx context.Context, accountID string, n int) error {
	if err := r.ensure(ctx, accountID); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx,
		`UPDATE credit_accounts
		 SET free_updates_remaining = $2,
		     updated_at = NOW()
		 WHERE account_id = $1`,
		accountID,
		n,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set free updates", err)
	}
	return nil
}

// ApplyTransition moves the account to the target plan in one statement.
// Under PolicyReset the balance becomes exactly allowance; under
// PolicyRollover the allowance is added to whatever remains. The plan,
// balance, and free-update counter change together or not at all.
func (r *CreditRepo) ApplyTransition(
	ctx context.Context,
	accountID string,
	target types.PlanTier,
	policy types.TransitionPolicy,
	allowance int,
	freeUpdates int,
) (int, error) {
	if err := r.ensure(ctx, accountID); err != nil {
		return 0, err
	}

	var query string
	switch policy {
	case types.PolicyReset:
		query = `UPDATE credit_accounts
		 SET plan = $2,
		     credits = $3,
		     free_updates_remaining = $4,
		     updated_at = NOW()
		 WHERE account_id = $1
		 RETURNING credits`
	default:
		query = `UPDATE credit_accounts
		 SET plan = $2,
		     credits = credits + $3,
		     free_updates_remaining = $4,
		     updated_at = NOW()
		 WHERE account_id = $1
		 RETURNING credits`
	}

	var credits int
	err := r.db.QueryRow(ctx, query, accountID, target, allowance, freeUpdates).Scan(&credits)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to apply plan transition", err)
	}

	r.logger.InfoContext(ctx, "plan transition applied",
		"account_id", accountID,
		"plan", string(target),
		"policy", string(policy),
		"credits", credits,
	)
	return credits, nil
}

// Delete removes the account's balance record. A later touch recreates it
// with free-tier defaults.
func (r *CreditRepo) Delete(ctx context.Context, accountID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM credit_accounts WHERE account_id = $1`,
		accountID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete credit account", err)
	}
	return nil
}
