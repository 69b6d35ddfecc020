package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint/internal/ledger"
	"blueprint/internal/types"
)

type fakeGateway struct {
	createOrderFunc   func(ctx context.Context, accountID string, plan types.PlanTier, amountMinor int64, planName string) (*types.PaymentOrder, error)
	verifyPaymentFunc func(ctx context.Context, orderID, paymentRef string) error
}

func (f *fakeGateway) CreateOrder(ctx context.Context, accountID string, plan types.PlanTier, amountMinor int64, planName string) (*types.PaymentOrder, error) {
	return f.createOrderFunc(ctx, accountID, plan, amountMinor, planName)
}

func (f *fakeGateway) VerifyPayment(ctx context.Context, orderID, paymentRef string) error {
	if f.verifyPaymentFunc == nil {
		return nil
	}
	return f.verifyPaymentFunc(ctx, orderID, paymentRef)
}

// memoryPaymentStore mirrors the insert-once semantics of the applied_payments
// table for tests.
type memoryPaymentStore struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMemoryPaymentStore() *memoryPaymentStore {
	return &memoryPaymentStore{seen: make(map[string]bool)}
}

func (s *memoryPaymentStore) Record(_ context.Context, paymentRef, _ string, _ types.PlanTier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.seen[paymentRef] {
		return false, nil
	}
	s.seen[paymentRef] = true
	return true, nil
}

func newTestManager(t *testing.T, store ledger.CreditStore, gw *fakeGateway) (*TransitionManager, *memoryPaymentStore) {
	t.Helper()
	payments := newMemoryPaymentStore()
	if gw == nil {
		gw = &fakeGateway{}
	}
	return NewTransitionManager(NewStaticPlanCatalog(), store, payments, gw, nil), payments
}

func TestTransitionManager_InitiateUpgrade(t *testing.T) {
	store := ledger.NewMemoryCreditStore()
	gw := &fakeGateway{
		createOrderFunc: func(_ context.Context, accountID string, plan types.PlanTier, amountMinor int64, planName string) (*types.PaymentOrder, error) {
			assert.Equal(t, "acct-1", accountID)
			assert.Equal(t, types.PlanStarter, plan)
			assert.Equal(t, int64(49900), amountMinor)
			return &types.PaymentOrder{
				OrderID:  "order_123",
				Amount:   amountMinor,
				Currency: "usd",
				PlanID:   plan,
				PlanName: planName,
			}, nil
		},
	}
	mgr, _ := newTestManager(t, store, gw)

	order, err := mgr.InitiateUpgrade(context.Background(), "acct-1", types.PlanStarter)
	require.NoError(t, err)
	assert.Equal(t, "order_123", order.OrderID)
	assert.Equal(t, int64(49900), order.Amount)
}

func TestTransitionManager_InitiateUpgrade_RejectsFreeAndUnknown(t *testing.T) {
	mgr, _ := newTestManager(t, ledger.NewMemoryCreditStore(), &fakeGateway{
		createOrderFunc: func(context.Context, string, types.PlanTier, int64, string) (*types.PaymentOrder, error) {
			t.Fatal("gateway should not be called")
			return nil, nil
		},
	})

	_, err := mgr.InitiateUpgrade(context.Background(), "acct-1", types.PlanFree)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPlan, appErr.Code)

	_, err = mgr.InitiateUpgrade(context.Background(), "acct-1", types.PlanTier("enterprise"))
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPlan, appErr.Code)
}

func TestTransitionManager_ConfirmUpgrade_CreditsAndSetsPlan(t *testing.T) {
	store := ledger.NewMemoryCreditStore()
	store.Seed(types.CreditBalance{
		AccountID: "acct-1",
		Credits:   30,
		Plan:      types.PlanFree,
		UpdatedAt: time.Now(),
	})
	mgr, _ := newTestManager(t, store, nil)

	res, err := mgr.ConfirmUpgrade(context.Background(), "acct-1", types.PlanStarter, "order_1", "pay_1")
	require.NoError(t, err)

	assert.Equal(t, types.PlanStarter, res.Plan)
	assert.Equal(t, 150, res.Credits, "upgrade rolls the remaining balance into the new allowance")
	assert.Equal(t, 1, res.FreeUpdatesRemaining)
	assert.False(t, res.AlreadyApplied)

	bal, err := store.GetOrCreate(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanStarter, bal.Plan)
	assert.Equal(t, 150, bal.Credits)
	assert.Equal(t, 1, bal.FreeUpdatesRemaining)
}

func TestTransitionManager_ConfirmUpgrade_DuplicateRefAppliesOnce(t *testing.T) {
	store := ledger.NewMemoryCreditStore()
	mgr, _ := newTestManager(t, store, nil)

	first, err := mgr.ConfirmUpgrade(context.Background(), "acct-1", types.PlanPro, "order_1", "pay_once")
	require.NoError(t, err)
	assert.False(t, first.AlreadyApplied)
	assert.Equal(t, 50+240, first.Credits)

	// Same reference again: webhook redelivery or a client verify racing the
	// webhook. Treated as success but must not credit a second time.
	second, err := mgr.ConfirmUpgrade(context.Background(), "acct-1", types.PlanPro, "order_1", "pay_once")
	require.NoError(t, err)
	assert.True(t, second.AlreadyApplied)
	assert.Equal(t, first.Credits, second.Credits)

	bal, err := store.GetOrCreate(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, first.Credits, bal.Credits)
}

func TestTransitionManager_ConfirmUpgrade_VerificationFailure(t *testing.T) {
	store := ledger.NewMemoryCreditStore()
	gw := &fakeGateway{
		verifyPaymentFunc: func(_ context.Context, _, _ string) error {
			return errors.New("signature mismatch")
		},
	}
	mgr, payments := newTestManager(t, store, gw)

	_, err := mgr.ConfirmUpgrade(context.Background(), "acct-1", types.PlanStarter, "order_1", "pay_bad")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodePaymentVerificationFailed, appErr.Code)

	assert.Empty(t, payments.seen, "failed verification must not record the reference")
	bal, err := store.GetOrCreate(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, store.DefaultCredits, bal.Credits)
	assert.Equal(t, types.PlanFree, bal.Plan)
}

func TestTransitionManager_ConfirmUpgrade_Concurrent(t *testing.T) {
	store := ledger.NewMemoryCreditStore()
	mgr, _ := newTestManager(t, store, nil)

	const workers = 8
	var wg sync.WaitGroup
	applied := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := mgr.ConfirmUpgrade(context.Background(), "acct-1", types.PlanStarter, "order_1", "pay_race")
			if err != nil {
				t.Error(err)
				return
			}
			applied <- !res.AlreadyApplied
		}()
	}
	wg.Wait()
	close(applied)

	var firstTime int
	for a := range applied {
		if a {
			firstTime++
		}
	}
	assert.Equal(t, 1, firstTime, "exactly one confirmation should credit the account")

	bal, err := store.GetOrCreate(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 50+120, bal.Credits)
}

func TestTransitionManager_ChangePlan_DowngradeToFreeResets(t *testing.T) {
	store := ledger.NewMemoryCreditStore()
	store.Seed(types.CreditBalance{
		AccountID:            "acct-1",
		Credits:              200,
		Plan:                 types.PlanPro,
		FreeUpdatesRemaining: 3,
		UpdatedAt:            time.Now(),
	})
	mgr, _ := newTestManager(t, store, nil)

	res, err := mgr.ChangePlan(context.Background(), "acct-1", types.PlanFree)
	require.NoError(t, err)

	assert.Equal(t, types.PlanFree, res.Plan)
	assert.Equal(t, 50, res.Credits, "downgrade to free discards the prior balance")
	assert.Equal(t, 0, res.FreeUpdatesRemaining)
}

func TestTransitionManager_ChangePlan_RolloverBetweenPaidTiers(t *testing.T) {
	store := ledger.NewMemoryCreditStore()
	store.Seed(types.CreditBalance{
		AccountID:            "acct-1",
		Credits:              80,
		Plan:                 types.PlanStarter,
		FreeUpdatesRemaining: 0,
		UpdatedAt:            time.Now(),
	})
	mgr, _ := newTestManager(t, store, nil)

	res, err := mgr.ChangePlan(context.Background(), "acct-1", types.PlanPro)
	require.NoError(t, err)

	assert.Equal(t, types.PlanPro, res.Plan)
	assert.Equal(t, 80+240, res.Credits)
	assert.Equal(t, 3, res.FreeUpdatesRemaining)
}

func TestTransitionManager_ChangePlan_UnknownTier(t *testing.T) {
	mgr, _ := newTestManager(t, ledger.NewMemoryCreditStore(), nil)

	_, err := mgr.ChangePlan(context.Background(), "acct-1", types.PlanTier("platinum"))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPlan, appErr.Code)
}
