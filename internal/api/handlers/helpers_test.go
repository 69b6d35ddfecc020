package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"blueprint/internal/billing"
	"blueprint/internal/core"
	"blueprint/internal/types"
)

const testAccountID = "acct_test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

// newRouter mounts the given registrar behind middleware that injects a test
// Actor, mirroring what core.AuthMiddleware does in production. Pass
// withoutActor to exercise the unauthenticated path.
func newRouter(registrar func(chi.Router), opts ...routerOpt) http.Handler {
	cfg := routerConfig{actor: &types.Actor{AccountID: testAccountID, Email: "dev@blueprint.test"}}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if cfg.actor != nil {
				ctx = types.WithActor(ctx, *cfg.actor)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	registrar(r)
	return r
}

type routerConfig struct {
	actor *types.Actor
}

type routerOpt func(*routerConfig)

func withoutActor() routerOpt {
	return func(cfg *routerConfig) { cfg.actor = nil }
}

// doJSON performs a request with an optional JSON body and returns the
// recorder.
func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the {data: ...} envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

// decodeError unmarshals the {error: ...} envelope.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var envelope struct {
		Error core.ErrorDetail `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

// fakeTransitioner implements PlanTransitioner with function fields. Shared
// by the payment and webhook tests.
type fakeTransitioner struct {
	initiateFunc func(ctx context.Context, accountID string, target types.PlanTier) (*types.PaymentOrder, error)
	confirmFunc  func(ctx context.Context, accountID string, target types.PlanTier, orderID, paymentRef string) (*billing.TransitionResult, error)
	changeFunc   func(ctx context.Context, accountID string, target types.PlanTier) (*billing.TransitionResult, error)
}

func (f *fakeTransitioner) InitiateUpgrade(ctx context.Context, accountID string, target types.PlanTier) (*types.PaymentOrder, error) {
	return f.initiateFunc(ctx, accountID, target)
}

func (f *fakeTransitioner) ConfirmUpgrade(ctx context.Context, accountID string, target types.PlanTier, orderID, paymentRef string) (*billing.TransitionResult, error) {
	return f.confirmFunc(ctx, accountID, target, orderID, paymentRef)
}

func (f *fakeTransitioner) ChangePlan(ctx context.Context, accountID string, target types.PlanTier) (*billing.TransitionResult, error) {
	return f.changeFunc(ctx, accountID, target)
}
