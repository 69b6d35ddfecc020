package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint/internal/types"
)

func seededStore(accountID string, credits, freeUpdates int, plan types.PlanTier) *MemoryCreditStore {
	store := NewMemoryCreditStore()
	store.Seed(types.CreditBalance{
		AccountID:            accountID,
		Credits:              credits,
		Plan:                 plan,
		FreeUpdatesRemaining: freeUpdates,
	})
	return store
}

func TestLedger_Balance_LazyCreationDefaults(t *testing.T) {
	store := NewMemoryCreditStore()
	l := New(store, nil)

	bal, err := l.Balance(context.Background(), "acct_new")
	require.NoError(t, err)

	assert.Equal(t, 50, bal.Credits)
	assert.Equal(t, types.PlanFree, bal.Plan)
	assert.Equal(t, 0, bal.FreeUpdatesRemaining)
}

func TestLedger_Authorize_SufficientCredits(t *testing.T) {
	l := New(seededStore("acct_1", 30, 0, types.PlanFree), nil)

	err := l.Authorize(context.Background(), "acct_1", 20)
	require.NoError(t, err)

	// Authorize is read-only: the balance is untouched.
	bal, err := l.Balance(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 30, bal.Credits)
}

func TestLedger_Authorize_InsufficientCredits(t *testing.T) {
	l := New(seededStore("acct_1", 10, 0, types.PlanFree), nil)

	err := l.Authorize(context.Background(), "acct_1", 20)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInsufficientCredits, appErr.Code)
	assert.Equal(t, 10, appErr.Details["have"])
	assert.Equal(t, 20, appErr.Details["need"])
}

func TestLedger_Debit_Success(t *testing.T) {
	l := New(seededStore("acct_1", 50, 0, types.PlanFree), nil)

	balance, err := l.Debit(context.Background(), "acct_1", 20)
	require.NoError(t, err)
	assert.Equal(t, 30, balance)
}

func TestLedger_AuthorizeThenDebit_Uncontended(t *testing.T) {
	l := New(seededStore("acct_1", 20, 0, types.PlanFree), nil)
	ctx := context.Background()

	require.NoError(t, l.Authorize(ctx, "acct_1", 20))
	balance, err := l.Debit(ctx, "acct_1", 20)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestLedger_Debit_NeverGoesNegative(t *testing.T) {
	l := New(seededStore("acct_1", 10, 0, types.PlanFree), nil)

	balance, err := l.Debit(context.Background(), "acct_1", 20)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInsufficientCredits, appErr.Code)

	// The denial carries the current balance and the balance is unchanged.
	assert.Equal(t, 10, balance)
	bal, err := l.Balance(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 10, bal.Credits)
}

// Verifies the single property the design guards hardest: N concurrent
// debits where N*cost exceeds the balance must admit at most
// floor(balance/cost) of them, with the rest denied and the final balance
// exactly balance - succeeded*cost.
func TestLedger_Debit_ConcurrentContention(t *testing.T) {
	const (
		startBalance = 50
		cost         = 20
		workers      = 16
	)

	l := New(seededStore("acct_1", startBalance, 0, types.PlanFree), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := l.Debit(ctx, "acct_1", cost)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	succeeded, denied := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeInsufficientCredits, appErr.Code)
		denied++
	}

	assert.Equal(t, startBalance/cost, succeeded, "at most floor(balance/cost) debits may win")
	assert.Equal(t, workers-startBalance/cost, denied)

	bal, err := l.Balance(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, startBalance-succeeded*cost, bal.Credits)
	assert.GreaterOrEqual(t, bal.Credits, 0)
}

func TestLedger_DebitCreditSequence_StaysNonNegative(t *testing.T) {
	l := New(seededStore("acct_1", 50, 0, types.PlanFree), nil)
	ctx := context.Background()

	ops := []struct {
		debit  int // 0 means credit
		credit int
		want   int
	}{
		{debit: 20, want: 30},
		{debit: 20, want: 10},
		{debit: 20, want: 10}, // denied, balance unchanged
		{credit: 120, want: 130},
		{debit: 90, want: 40},
		{debit: 50, want: 40}, // denied
	}

	for _, op := range ops {
		if op.debit > 0 {
			balance, err := l.Debit(ctx, "acct_1", op.debit)
			if err != nil {
				var appErr *types.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, types.ErrCodeInsufficientCredits, appErr.Code)
			}
			_ = balance
		} else {
			_, err := l.Credit(ctx, "acct_1", op.credit)
			require.NoError(t, err)
		}

		bal, err := l.Balance(ctx, "acct_1")
		require.NoError(t, err)
		assert.Equal(t, op.want, bal.Credits)
		assert.GreaterOrEqual(t, bal.Credits, 0)
	}
}

func TestLedger_Refund_RestoresBalance(t *testing.T) {
	l := New(seededStore("acct_1", 50, 0, types.PlanFree), nil)
	ctx := context.Background()

	balance, err := l.Debit(ctx, "acct_1", 20)
	require.NoError(t, err)
	require.Equal(t, 30, balance)

	balance, err = l.Refund(ctx, "acct_1", 20)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)
}

func TestMemoryCreditStore_Delete(t *testing.T) {
	store := seededStore("acct_1", 200, 3, types.PlanPro)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "acct_1"))

	// Re-access recreates with free-tier defaults.
	bal, err := store.GetOrCreate(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 50, bal.Credits)
	assert.Equal(t, types.PlanFree, bal.Plan)
}
