package ledger

import (
	"context"
	"sync"
	"time"

	"blueprint/internal/types"
)

// MemoryCreditStore is an in-memory CreditStore used for local development
// and tests. A single mutex serializes all mutations, which satisfies the
// per-account atomicity contract (and more); contention is irrelevant at
// dev/test scale.
type MemoryCreditStore struct {
	mu       sync.Mutex
	accounts map[string]*types.CreditBalance

	// Defaults applied on lazy creation. Zero values fall back to the
	// free-tier defaults.
	DefaultCredits int
	DefaultPlan    types.PlanTier
}

// NewMemoryCreditStore creates an empty in-memory store with free-tier
// lazy-creation defaults (50 credits, plan free, 0 free updates).
func NewMemoryCreditStore() *MemoryCreditStore {
	return &MemoryCreditStore{
		accounts:       make(map[string]*types.CreditBalance),
		DefaultCredits: 50,
		DefaultPlan:    types.PlanFree,
	}
}

// getOrCreateLocked returns the record for accountID, creating it with the
// configured defaults. Caller must hold mu.
func (s *MemoryCreditStore) getOrCreateLocked(accountID string) *types.CreditBalance {
	if b, ok := s.accounts[accountID]; ok {
		return b
	}
	b := &types.CreditBalance{
		AccountID: accountID,
		Credits:   s.DefaultCredits,
		Plan:      s.DefaultPlan,
		UpdatedAt: time.Now().UTC(),
	}
	s.accounts[accountID] = b
	return b
}

// GetOrCreate implements CreditStore.
func (s *MemoryCreditStore) GetOrCreate(_ context.Context, accountID string) (*types.CreditBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.getOrCreateLocked(accountID)
	cp := *b
	return &cp, nil
}

// DebitIfSufficient implements CreditStore.
func (s *MemoryCreditStore) DebitIfSufficient(_ context.Context, accountID string, cost int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.getOrCreateLocked(accountID)
	if b.Credits < cost {
		return b.Credits, false, nil
	}
	b.Credits -= cost
	b.UpdatedAt = time.Now().UTC()
	return b.Credits, true, nil
}

// AddCredits implements CreditStore.
func (s *MemoryCreditStore) AddCredits(_ context.Context, accountID string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.getOrCreateLocked(accountID)
	b.Credits += amount
	b.UpdatedAt = time.Now().UTC()
	return b.Credits, nil
}

// ConsumeFreeUpdate implements CreditStore.
func (s *MemoryCreditStore) ConsumeFreeUpdate(_ context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.getOrCreateLocked(accountID)
	if b.FreeUpdatesRemaining <= 0 {
		return false, nil
	}
	b.FreeUpdatesRemaining--
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

// SetFreeUpdates implements CreditStore.
func (s *MemoryCreditStore) SetFreeUpdates(_ context.Context, accountID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.getOrCreateLocked(accountID)
	b.FreeUpdatesRemaining = n
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyTransition implements CreditStore.
func (s *MemoryCreditStore) ApplyTransition(_ context.Context, accountID string, target types.PlanTier, policy types.TransitionPolicy, allowance, freeUpdates int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.getOrCreateLocked(accountID)
	switch policy {
	case types.PolicyReset:
		b.Credits = allowance
	default:
		b.Credits += allowance
	}
	b.Plan = target
	b.FreeUpdatesRemaining = freeUpdates
	b.UpdatedAt = time.Now().UTC()
	return b.Credits, nil
}

// Delete implements CreditStore.
func (s *MemoryCreditStore) Delete(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, accountID)
	return nil
}

// Seed installs a record directly, for tests.
func (s *MemoryCreditStore) Seed(b types.CreditBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := b
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.accounts[b.AccountID] = &cp
}

// Compile-time interface compliance check.
var _ CreditStore = (*MemoryCreditStore)(nil)
