// Package main is the entry point for the Blueprint API server.
//
// It loads configuration, connects to PostgreSQL, wires the credit ledger,
// plan catalog, generation orchestrator, and payment transition manager, and
// serves the versioned HTTP API with the core chassis (middleware, routing,
// health checks).
//
// In local mode (APP_ENV=local) or test mode (IS_TEST_MODE=true) the upstream
// generator and the payment gateway are replaced with stubs so the full API
// surface works without external accounts.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blueprint/internal/api/handlers"
	"blueprint/internal/auth"
	"blueprint/internal/billing"
	"blueprint/internal/config"
	"blueprint/internal/core"
	"blueprint/internal/db"
	"blueprint/internal/external"
	"blueprint/internal/generation"
	"blueprint/internal/ledger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// Secret-file resolution is bypassed when APP_ENV=local, so the provider
	// is only consulted in deployed environments.
	cfg, err := config.LoadConfig(config.NewFileSecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("blueprint API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask(), db.PoolConfig{
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		AcquireTimeout:    cfg.Database.AcquireTimeout,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	// Repositories.
	creditStore := db.NewCreditRepo(pool, logger)
	documents := db.NewDocumentRepo(pool, logger)
	payments := db.NewAppliedPaymentRepo(pool, logger)

	// Domain services.
	catalog := billing.NewStaticPlanCatalog()
	creditLedger := ledger.New(creditStore, logger)
	entitlements := ledger.NewEntitlements(creditStore, logger)

	generator, gateway, verifier := buildExternalClients(cfg, logger)

	orchestrator := generation.NewOrchestrator(catalog, creditLedger, entitlements, documents, generator, logger)
	transitions := billing.NewTransitionManager(catalog, creditStore, payments, gateway, logger)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = auth.NewJWTAuthenticator(cfg.Auth, logger)

	generateHandler := handlers.NewGenerateHandler(orchestrator, srv.Validator, logger)
	documentsHandler := handlers.NewDocumentsHandler(documents, creditLedger, catalog, logger)
	creditsHandler := handlers.NewCreditsHandler(creditLedger, catalog, logger)
	paymentHandler := handlers.NewPaymentHandler(transitions, creditStore, documents, srv.Validator, logger)
	webhookHandler := handlers.NewPaymentWebhookHandler(
		verifier, transitions, cfg.Billing.StripeWebhookSecret.Unmask(), logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		generateHandler.RegisterRoutes,
		documentsHandler.RegisterRoutes,
		creditsHandler.RegisterRoutes,
		paymentHandler.RegisterRoutes,
	)
	srv.WebhookRouteRegistrars = append(srv.WebhookRouteRegistrars,
		webhookHandler.RegisterRoutes,
	)

	srv.HealthProbes = append(srv.HealthProbes, core.HealthProbeFunc{
		ProbeName: "database",
		CheckFunc: pool.Ping,
	})
	srv.Closers = append(srv.Closers, func() error {
		pool.Close()
		return nil
	})

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// buildExternalClients returns the generator, payment gateway, and webhook
// verifier for the current environment. Local and test mode run against
// stubs; everything else talks to the real services.
func buildExternalClients(cfg *config.Config, logger *slog.Logger) (external.DocumentGenerator, billing.PaymentGateway, external.WebhookVerifier) {
	if cfg.IsTestMode || cfg.Environment == "local" {
		logger.Warn("running with stub external clients; no real generation or payments will occur")
		return external.NewStubGenerator(logger),
			external.NewStubPaymentGateway(logger),
			&external.StubVerifier{}
	}

	generator := external.NewGeneratorClient(
		&http.Client{Timeout: cfg.Generator.Timeout},
		external.GeneratorClientConfig{
			APIKey:  cfg.Generator.APIKey.Unmask(),
			BaseURL: cfg.Generator.BaseURL,
			Logger:  logger,
		},
	)
	gateway := external.NewStripeGateway(
		&http.Client{Timeout: 30 * time.Second},
		external.StripeGatewayConfig{
			SecretKey:      cfg.Billing.StripeSecretKey.Unmask(),
			PublishableKey: cfg.Billing.StripePublishableKey,
			BaseURL:        cfg.Billing.StripeBaseURL,
			Logger:         logger,
		},
	)
	return generator, gateway, &external.StripeVerifier{}
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// The archive export and generation endpoints can legitimately hold a
		// response open for most of the request timeout.
		WriteTimeout: cfg.Server.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
