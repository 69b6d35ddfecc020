package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// maxSecretFileSize bounds secret file reads. Anything larger than 64 KiB is
// not a credential and almost certainly a misconfigured path.
const maxSecretFileSize = 64 * 1024

// FileSecretProvider implements SecretProvider by reading secret values from
// files on disk. This is the production provider: the orchestrator mounts each
// secret as a file (e.g., /run/secrets/stripe_secret_key) and the environment
// carries only the path, never the value.
type FileSecretProvider struct{}

// NewFileSecretProvider creates a new FileSecretProvider.
func NewFileSecretProvider() *FileSecretProvider {
	return &FileSecretProvider{}
}

// GetSecretsBatch reads each reference as a file path and returns the trimmed
// file contents. Paths that do not exist are omitted from the result so the
// caller can report exactly which secrets are missing. Any other read failure
// (permissions, I/O) is returned as an error since it indicates a broken
// deployment rather than an absent secret.
func (p *FileSecretProvider) GetSecretsBatch(ctx context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(ref)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat secret file %s: %w", ref, err)
		}
		if info.Size() > maxSecretFileSize {
			return nil, fmt.Errorf("secret file %s exceeds %d bytes", ref, maxSecretFileSize)
		}

		raw, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("read secret file %s: %w", ref, err)
		}

		// Orchestrators commonly append a trailing newline when writing
		// secret files; strip surrounding whitespace so it never ends up
		// inside a credential.
		result[ref] = strings.TrimSpace(string(raw))
	}
	return result, nil
}
