package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setValidEnv populates the minimum environment required for LoadConfig to
// succeed. Individual tests override or unset entries as needed.
func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("API_EXTERNAL_URL", "https://api.blueprint.test")
	t.Setenv("DATABASE_URL", "postgres://blueprint:pw@localhost:5432/blueprint")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_abc123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_abc123")
	t.Setenv("STRIPE_PUBLISHABLE_KEY", "pk_test_abc123")
	t.Setenv("GENERATOR_API_KEY", "gen_test_key")
	t.Setenv("GENERATOR_BASE_URL", "https://generator.blueprint.test")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadConfig_Success(t *testing.T) {
	setValidEnv(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "blueprint-api", cfg.Service)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CorsAllowedOrigins)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, 120*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, "blueprint", cfg.Auth.Issuer)
	assert.False(t, cfg.IsTestMode)

	// Build metadata comes from linker defaults in tests.
	assert.Equal(t, "dev", cfg.Build.Version)
}

func TestLoadConfig_SecretsStayRedacted(t *testing.T) {
	setValidEnv(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "sk_test_abc123", cfg.Billing.StripeSecretKey.Unmask())
	assert.NotContains(t, cfg.Billing.StripeSecretKey.String(), "sk_test")
	assert.NotContains(t, cfg.Database.URL.String(), "pw")
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig(nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	setValidEnv(t)
	t.Setenv("APP_ENV", "production-ish")

	_, err := LoadConfig(nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_ShortJWTSecret(t *testing.T) {
	setValidEnv(t)
	t.Setenv("JWT_SECRET", "too-short")

	_, err := LoadConfig(nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.blueprint.test,https://admin.blueprint.test")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("IS_TEST_MODE", "true")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://app.blueprint.test", "https://admin.blueprint.test"}, cfg.Server.CorsAllowedOrigins)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.True(t, cfg.IsTestMode)
}

// --- secret file resolution ---

// fakeProvider implements SecretProvider over a fixed map of ref -> value.
type fakeProvider struct {
	secrets map[string]string
	err     error
	calls   [][]string
}

func (f *fakeProvider) GetSecretsBatch(_ context.Context, refs []string) (map[string]string, error) {
	f.calls = append(f.calls, refs)
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[string]string, len(refs))
	for _, ref := range refs {
		if v, ok := f.secrets[ref]; ok {
			result[ref] = v
		}
	}
	return result, nil
}

// fakeEnv builds loaderDeps backed by an in-memory environment map.
func fakeEnv(vars map[string]string) loaderDeps {
	return loaderDeps{
		lookupEnv: func(key string) (string, bool) {
			v, ok := vars[key]
			return v, ok
		},
		setEnv: func(key, value string) error {
			vars[key] = value
			return nil
		},
		environ: func() []string {
			entries := make([]string, 0, len(vars))
			for k, v := range vars {
				entries = append(entries, k+"="+v)
			}
			return entries
		},
	}
}

func TestResolveSecretFiles_InjectsResolvedValues(t *testing.T) {
	vars := map[string]string{
		"STRIPE_SECRET_KEY_FILE": "/run/secrets/stripe",
		"JWT_SECRET_FILE":        "/run/secrets/jwt",
	}
	provider := &fakeProvider{secrets: map[string]string{
		"/run/secrets/stripe": "sk_live_resolved",
		"/run/secrets/jwt":    "resolved-jwt-secret-value-32bytes!!",
	}}

	err := resolveSecretFiles(provider, fakeEnv(vars))
	require.NoError(t, err)

	assert.Equal(t, "sk_live_resolved", vars["STRIPE_SECRET_KEY"])
	assert.Equal(t, "resolved-jwt-secret-value-32bytes!!", vars["JWT_SECRET"])
}

func TestResolveSecretFiles_EnvTakesPriority(t *testing.T) {
	vars := map[string]string{
		"STRIPE_SECRET_KEY":      "sk_from_env",
		"STRIPE_SECRET_KEY_FILE": "/run/secrets/stripe",
	}
	provider := &fakeProvider{secrets: map[string]string{
		"/run/secrets/stripe": "sk_from_file",
	}}

	err := resolveSecretFiles(provider, fakeEnv(vars))
	require.NoError(t, err)

	assert.Equal(t, "sk_from_env", vars["STRIPE_SECRET_KEY"])
	assert.Empty(t, provider.calls, "provider should not be called when nothing needs resolving")
}

func TestResolveSecretFiles_NilProviderWithBindings(t *testing.T) {
	vars := map[string]string{
		"DATABASE_URL_FILE": "/run/secrets/db",
	}

	err := resolveSecretFiles(nil, fakeEnv(vars))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrSecretResolution, cfgErr.Type)
	assert.Contains(t, cfgErr.Message, "DATABASE_URL")
}

func TestResolveSecretFiles_NilProviderNoBindings(t *testing.T) {
	vars := map[string]string{"APP_ENV": "dev"}
	err := resolveSecretFiles(nil, fakeEnv(vars))
	assert.NoError(t, err)
}

func TestResolveSecretFiles_MissingSecret(t *testing.T) {
	vars := map[string]string{
		"DATABASE_URL_FILE": "/run/secrets/db",
	}
	provider := &fakeProvider{secrets: map[string]string{}}

	err := resolveSecretFiles(provider, fakeEnv(vars))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrSecretResolution, cfgErr.Type)
	assert.Contains(t, cfgErr.Message, "DATABASE_URL")
}

func TestResolveSecretFiles_ProviderError(t *testing.T) {
	vars := map[string]string{
		"DATABASE_URL_FILE": "/run/secrets/db",
	}
	provider := &fakeProvider{err: errors.New("disk on fire")}

	err := resolveSecretFiles(provider, fakeEnv(vars))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrSecretResolution, cfgErr.Type)
	assert.ErrorContains(t, cfgErr.Err, "disk on fire")
}

func TestConfigError_Format(t *testing.T) {
	err := &ConfigError{Type: ErrParsing, Message: "bad value", Err: errors.New("strconv failed")}
	assert.Equal(t, "[PARSING_FAILED] bad value: strconv failed", err.Error())

	bare := &ConfigError{Type: ErrMissingEnv, Message: "APP_ENV not set"}
	assert.Equal(t, "[MISSING_ENV] APP_ENV not set", bare.Error())
}
