// Package auth verifies bearer tokens issued by the identity provider and
// resolves them to Actors for the HTTP layer.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"blueprint/internal/config"
	"blueprint/internal/types"
)

// accountClaims is the expected JWT payload. The subject carries the account
// ID; email rides along for logging and support tooling.
type accountClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256-signed bearer tokens. It implements
// core.Authenticator.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	logger *slog.Logger
}

// NewJWTAuthenticator creates an authenticator from the auth configuration.
func NewJWTAuthenticator(cfg config.AuthConfig, logger *slog.Logger) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret: []byte(cfg.JWTSecret.Unmask()),
		issuer: cfg.Issuer,
		logger: logger,
	}
}

// ResolveToken verifies the token signature, algorithm, issuer, and expiry,
// and returns the Actor it represents.
//
// Error codes:
//   - ErrCodeAuthTokenExpired when the token is well-formed but past "exp".
//   - ErrCodeAuthTokenInvalid for every other failure (bad signature, wrong
//     algorithm, wrong issuer, missing subject).
func (a *JWTAuthenticator) ResolveToken(_ context.Context, token string) (*types.Actor, error) {
	claims := &accountClaims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token verification failed", err)
	}

	if claims.Subject == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token carries no account identity", nil)
	}

	return &types.Actor{
		AccountID: claims.Subject,
		Email:     claims.Email,
	}, nil
}

// MintToken issues a signed token for the given account. Used by local
// development tooling and tests; production tokens come from the identity
// provider.
func (a *JWTAuthenticator) MintToken(accountID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accountClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
