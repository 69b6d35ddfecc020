package core

import (
	"context"
	"sync"

	"blueprint/internal/types"
)

// MockAuthenticator implements the Authenticator interface for testing. It
// allows injecting a predefined Actor for any token, or a fixed error to
// simulate authentication failures.
//
// Usage:
//
//	mock := &MockAuthenticator{
//	    Actor: &types.Actor{AccountID: "acct_test123"},
//	}
//	actor, err := mock.ResolveToken(ctx, "token")
//
// To simulate an error:
//
//	mock := &MockAuthenticator{
//	    Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil),
//	}
type MockAuthenticator struct {
	// Actor is the predefined Actor returned on successful token resolution.
	// If nil and Err is also nil, ResolveToken returns (nil, nil).
	Actor *types.Actor

	// Err is the error returned by ResolveToken. When set, Actor is ignored.
	Err error

	// ResolveTokenFunc optionally overrides the default behavior. When set,
	// it takes precedence over Actor and Err, letting tests vary behavior by
	// token value.
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	mu sync.Mutex

	// Calls records every token passed to ResolveToken for assertions.
	Calls []string
}

// ResolveToken implements the Authenticator interface.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}
