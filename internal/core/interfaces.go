package core

import (
	"context"

	"blueprint/internal/types"
)

// Authenticator decouples the HTTP layer from the specific token mechanism
// (signed JWTs in production), allowing for easy mocking in tests.
type Authenticator interface {
	// ResolveToken verifies a bearer token and returns the Actor it
	// represents.
	//
	// Distinct error codes:
	//   - ErrCodeAuthTokenInvalid if the token is malformed, has a bad
	//     signature, or carries no account identity.
	//   - ErrCodeAuthTokenExpired if the token is well-formed but past its
	//     expiry.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}
