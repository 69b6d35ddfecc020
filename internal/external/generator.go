package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"blueprint/internal/types"
)

// GeneratorClientConfig holds the configuration for creating a
// GeneratorHTTPClient.
type GeneratorClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// generatorRequest is the envelope sent to the generation service.
type generatorRequest struct {
	Input *GeneratePayload `json:"input"`
}

// generatorResponse is the success body from the generation service.
type generatorResponse struct {
	Content string `json:"content"`
}

// generatorErrorResponse is the error body from the generation service.
type generatorErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GeneratorHTTPClient implements DocumentGenerator by making direct HTTP
// calls to the generation service through BaseClient. All requests route
// through the platform's resilience infrastructure (circuit breaker, retries,
// error mapping), which also makes testing with httptest straightforward.
type GeneratorHTTPClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewGeneratorClient creates a new GeneratorHTTPClient. The httpClient
// timeout should allow for long generations (e.g., 120 seconds).
func NewGeneratorClient(httpClient *http.Client, cfg GeneratorClientConfig, opts ...BaseClientOption) *GeneratorHTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"generator",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    1 * time.Second,
			MaxWait:    10 * time.Second,
		},
		"Blueprint/1.0",
		types.ErrCodeUpstreamGenerator,
		opts...,
	)

	return &GeneratorHTTPClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// Generate calls the generation service and returns the produced markdown.
func (c *GeneratorHTTPClient) Generate(ctx context.Context, payload GeneratePayload) (string, error) {
	reqBody := generatorRequest{Input: &payload}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize generation payload",
			err,
		)
	}

	url := fmt.Sprintf("%s/v1/generate", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create generation request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.InfoContext(ctx, "triggering document generation",
		"tool", string(payload.Tool),
		"project_name", payload.ProjectName,
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapError("Generate", err)
	}
	defer resp.Body.Close()

	// Handle non-2xx responses that made it past the BaseClient retry logic.
	// BaseClient returns 4xx responses (other than 429) as-is without error.
	if resp.StatusCode >= 400 {
		return "", c.handleErrorResponse(resp)
	}

	var genResp generatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode generation response",
			err,
		)
	}

	if genResp.Content == "" {
		return "", types.NewAppError(
			types.ErrCodeUpstreamGenerator,
			"generation service returned empty content",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "document generated",
		"tool", string(payload.Tool),
		"content_bytes", len(genResp.Content),
	)

	return genResp.Content, nil
}

// handleErrorResponse maps generator error bodies to domain errors. The
// important distinction is the provider's own quota running out: that is our
// operational problem, never the user's, and must not read like a credit
// denial.
func (c *GeneratorHTTPClient) handleErrorResponse(resp *http.Response) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("generation service error",
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	var errResp generatorErrorResponse
	_ = json.Unmarshal(bodyBytes, &errResp)

	if resp.StatusCode == http.StatusPaymentRequired || errResp.Error.Code == "quota_exhausted" {
		return types.NewAppError(
			types.ErrCodeUpstreamGeneratorQuota,
			"generation provider quota exhausted",
			fmt.Errorf("generator returned %d: %s", resp.StatusCode, bodyStr),
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamGenerator,
		fmt.Sprintf("generation service error (%d)", resp.StatusCode),
		fmt.Errorf("generator returned %d: %s", resp.StatusCode, bodyStr),
	)
}

// wrapError converts errors from BaseClient.Do into generator errors,
// preserving the code when it is already an AppError.
func (c *GeneratorHTTPClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("generator %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamGenerator,
		fmt.Sprintf("generator %s failed", operation),
		err,
	)
}

// Compile-time interface compliance check.
var _ DocumentGenerator = (*GeneratorHTTPClient)(nil)
