package config

import "context"

// SecretProvider abstracts the retrieval of secrets so production (file-mounted
// secrets from the container orchestrator) and local development (plain
// environment variables) can share the same loading path. The interface also
// enables dependency injection for testing.
type SecretProvider interface {
	// GetSecretsBatch resolves multiple secret references and returns a map of
	// reference -> plaintext value for all successfully resolved entries.
	// Unresolvable references are omitted from the result rather than treated
	// as errors; the caller decides whether a missing secret is fatal.
	GetSecretsBatch(ctx context.Context, refs []string) (map[string]string, error)
}
