package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecretFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileSecretProvider_ReadsAndTrims(t *testing.T) {
	dir := t.TempDir()
	stripePath := writeSecretFile(t, dir, "stripe", "sk_live_secret\n")
	jwtPath := writeSecretFile(t, dir, "jwt", "  jwt-signing-key  ")

	provider := NewFileSecretProvider()
	got, err := provider.GetSecretsBatch(context.Background(), []string{stripePath, jwtPath})
	require.NoError(t, err)

	assert.Equal(t, "sk_live_secret", got[stripePath])
	assert.Equal(t, "jwt-signing-key", got[jwtPath])
}

func TestFileSecretProvider_OmitsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	present := writeSecretFile(t, dir, "present", "value")
	absent := filepath.Join(dir, "absent")

	provider := NewFileSecretProvider()
	got, err := provider.GetSecretsBatch(context.Background(), []string{present, absent})
	require.NoError(t, err)

	assert.Equal(t, "value", got[present])
	_, ok := got[absent]
	assert.False(t, ok)
}

func TestFileSecretProvider_RejectsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, maxSecretFileSize+1)
	path := filepath.Join(dir, "big")
	require.NoError(t, os.WriteFile(path, big, 0o600))

	provider := NewFileSecretProvider()
	_, err := provider.GetSecretsBatch(context.Background(), []string{path})
	assert.ErrorContains(t, err, "exceeds")
}

func TestFileSecretProvider_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := NewFileSecretProvider()
	_, err := provider.GetSecretsBatch(ctx, []string{"/run/secrets/anything"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnvVarProvider_ResolvesFromEnvironment(t *testing.T) {
	t.Setenv("BLUEPRINT_TEST_SECRET", "from-env")

	provider := NewEnvVarProvider()
	got, err := provider.GetSecretsBatch(context.Background(), []string{"BLUEPRINT_TEST_SECRET", "BLUEPRINT_TEST_MISSING"})
	require.NoError(t, err)

	assert.Equal(t, "from-env", got["BLUEPRINT_TEST_SECRET"])
	_, ok := got["BLUEPRINT_TEST_MISSING"]
	assert.False(t, ok)
}
