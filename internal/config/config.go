// Package config defines the global configuration structure for the Blueprint
// platform. Configuration is loaded once at process startup and is immutable
// thereafter, following 12-Factor principles: code and configuration stay
// strictly separated.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret Files (Lowest)
//
// Any missing required value or invalid format causes startup to fail
// immediately.
package config

import (
	"time"

	"blueprint/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the Blueprint platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"blueprint-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Server    ServerConfig
	Database  DatabaseConfig
	Billing   BillingConfig
	Generator GeneratorConfig
	Auth      AuthConfig

	// Build Metadata (injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and CORS configuration.
type ServerConfig struct {
	Port           string `envconfig:"PORT" default:"8080"`
	APIExternalURL string `envconfig:"API_EXTERNAL_URL" validate:"required,url"` // e.g., https://api.blueprint.dev

	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// BillingConfig holds Stripe payment integration credentials.
type BillingConfig struct {
	StripeSecretKey      SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	StripePublishableKey string       `envconfig:"STRIPE_PUBLISHABLE_KEY" validate:"required"`
	// StripeBaseURL overrides the Stripe API endpoint for local testing.
	// Empty in production.
	StripeBaseURL string `envconfig:"STRIPE_BASE_URL"`
}

// GeneratorConfig holds the upstream document generation service credentials
// and timeouts.
type GeneratorConfig struct {
	APIKey  SecretString  `envconfig:"GENERATOR_API_KEY" validate:"required"`
	BaseURL string        `envconfig:"GENERATOR_BASE_URL" validate:"required,url"`
	Timeout time.Duration `envconfig:"GENERATOR_TIMEOUT" default:"120s"`
}

// AuthConfig holds token verification secrets.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens issued by the identity
	// provider. Minimum 32 bytes to keep HS256 keys out of brute-force range.
	JWTSecret SecretString `envconfig:"JWT_SECRET" validate:"required,min=32"`
	// Issuer is the expected "iss" claim on inbound tokens.
	Issuer string `envconfig:"JWT_ISSUER" default:"blueprint"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a failure when reading secret files.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
