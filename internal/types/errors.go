package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidTool  ErrorCode = "validation_invalid_tool_kind"
	ErrCodeValidationInvalidPlan  ErrorCode = "validation_invalid_plan"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationFieldFormat  ErrorCode = "validation_invalid_field_format"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenExpired ErrorCode = "auth_token_expired"

	// Entitlement (402/403)
	ErrCodeInsufficientCredits ErrorCode = "insufficient_credits"
	ErrCodePlanFeatureLocked   ErrorCode = "plan_feature_locked"

	// Not Found (404)
	ErrCodeNotFoundDocument ErrorCode = "not_found_document"
	ErrCodeNotFoundAccount  ErrorCode = "not_found_account"

	// Conflict (409)
	ErrCodeConflictDuplicatePayment ErrorCode = "conflict_duplicate_payment"
	ErrCodeConflictConcurrent       ErrorCode = "conflict_concurrent_modification"

	// Payment (402)
	ErrCodePaymentVerificationFailed ErrorCode = "payment_verification_failed"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeInternalPersistence   ErrorCode = "internal_persistence_error"
	ErrCodeUpstreamGenerator     ErrorCode = "upstream_generator_unavailable"
	ErrCodeUpstreamGeneratorQuota ErrorCode = "upstream_generator_quota_exhausted"
	ErrCodeUpstreamGateway       ErrorCode = "upstream_payment_gateway_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case s == string(ErrCodeInsufficientCredits),
		s == string(ErrCodePaymentVerificationFailed):
		return http.StatusPaymentRequired // 402
	case s == string(ErrCodePlanFeatureLocked):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewInsufficientCreditsError builds the standard actionable denial: the
// message and details always carry both the required cost and the current
// balance so callers can render a useful message.
func NewInsufficientCreditsError(have, need int) *AppError {
	return NewAppErrorWithDetails(
		ErrCodeInsufficientCredits,
		fmt.Sprintf("insufficient credits: you need %d credits but have %d", need, have),
		nil,
		map[string]any{"have": have, "need": need},
	)
}
