package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint/internal/types"
)

func newRequestWithID(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(types.WithRequestID(req.Context(), id))
}

func TestJSON_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, newRequestWithID("req-1"), http.StatusCreated, APIResponse{
		Data: map[string]int{"credits": 50},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"credits":50}}`, rec.Body.String())
}

func TestError_AppErrorUsesMappedStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, newRequestWithID("req-2"), types.NewInsufficientCreditsError(10, 20))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeInsufficientCredits), resp.Error.Code)
	assert.Equal(t, "req-2", resp.Error.RequestID)
	assert.EqualValues(t, 10, resp.Error.Details["credits_available"])
	assert.EqualValues(t, 20, resp.Error.Details["credits_required"])
}

func TestError_WrappedAppErrorIsUnwrapped(t *testing.T) {
	inner := types.NewAppError(types.ErrCodeNotFoundDocument, "document not found", nil)
	wrapped := errors.Join(errors.New("handler context"), inner)

	rec := httptest.NewRecorder()
	Error(rec, newRequestWithID("req-3"), wrapped)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeNotFoundDocument))
}

func TestError_GenericErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, newRequestWithID("req-4"), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeInternalUnexpected))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

// --- DecodeJSON ---

type decodeTarget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func decodeBody(t *testing.T, body string) (*decodeTarget, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	var dst decodeTarget
	err := DecodeJSON(rec, req, &dst)
	return &dst, err
}

func TestDecodeJSON_Success(t *testing.T) {
	dst, err := decodeBody(t, `{"name":"Storefront","count":3}`)
	require.NoError(t, err)
	assert.Equal(t, "Storefront", dst.Name)
	assert.Equal(t, 3, dst.Count)
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	_, err := decodeBody(t, `{"name":"x","bogus":true}`)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
	assert.Contains(t, appErr.Message, "bogus")
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	_, err := decodeBody(t, `{"name":`)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	_, err := decodeBody(t, ``)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "empty")
}

func TestDecodeJSON_TypeMismatchNamesField(t *testing.T) {
	_, err := decodeBody(t, `{"count":"not-a-number"}`)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "count", appErr.Details["field"])
}

func TestDecodeJSON_MultipleValues(t *testing.T) {
	_, err := decodeBody(t, `{"name":"a"}{"name":"b"}`)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "single JSON object")
}

func TestDecodeJSON_OversizedBody(t *testing.T) {
	huge := `{"name":"` + strings.Repeat("x", maxRequestBodySize+1) + `"}`
	_, err := decodeBody(t, huge)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "1MB")
}

func TestWriteJSON_EscapesControlCharacters(t *testing.T) {
	rec := httptest.NewRecorder()
	err := writeJSON(rec, APIErrorResponse{
		Error: ErrorDetail{
			Code:    "internal_unexpected_error",
			Message: "line1\nline2 \"quoted\"",
		},
	})
	require.NoError(t, err)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "line1\nline2 \"quoted\"", resp.Error.Message)
}
