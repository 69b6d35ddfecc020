package config

import (
	"context"
	"os"
)

// EnvVarProvider implements SecretProvider by resolving secret references as
// OS environment variables. This is the provider for local development where
// secrets are set directly in the environment or via a .env file.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetSecretsBatch resolves each reference by looking it up as an OS
// environment variable. Only references found in the environment are included
// in the returned map; missing ones are silently omitted.
//
// The context parameter is accepted for interface compatibility but is not
// used, as environment lookups are synchronous and non-cancellable.
func (p *EnvVarProvider) GetSecretsBatch(_ context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))
	for _, ref := range refs {
		if val, ok := os.LookupEnv(ref); ok {
			result[ref] = val
		}
	}
	return result, nil
}
