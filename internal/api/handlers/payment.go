// This file implements the plan transition endpoints: paid upgrades via the
// payment gateway, free plan changes, and account deletion.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blueprint/internal/billing"
	"blueprint/internal/core"
	"blueprint/internal/types"
)

// PlanTransitioner executes upgrades and downgrades between plan tiers.
// Mirrors the concrete billing.TransitionManager methods used here.
type PlanTransitioner interface {
	InitiateUpgrade(ctx context.Context, accountID string, target types.PlanTier) (*types.PaymentOrder, error)
	ConfirmUpgrade(ctx context.Context, accountID string, target types.PlanTier, orderID, paymentRef string) (*billing.TransitionResult, error)
	ChangePlan(ctx context.Context, accountID string, target types.PlanTier) (*billing.TransitionResult, error)
}

// AccountPurger removes an account's credit record. Satisfied by the
// ledger's CreditStore implementations.
type AccountPurger interface {
	Delete(ctx context.Context, accountID string) error
}

// DocumentPurger removes all of an account's documents. Satisfied by
// db.DocumentRepo.
type DocumentPurger interface {
	DeleteAllByAccount(ctx context.Context, accountID string) (int64, error)
}

// CreateOrderRequest is the request body for POST /v1/payment/create-order.
type CreateOrderRequest struct {
	PlanID string `json:"plan_id" validate:"required,plantier"`
}

// VerifyPaymentRequest is the request body for POST /v1/payment/verify.
type VerifyPaymentRequest struct {
	OrderID    string `json:"order_id" validate:"required"`
	PaymentRef string `json:"payment_ref" validate:"required"`
	PlanID     string `json:"plan_id" validate:"required,plantier"`
}

// ChangePlanRequest is the request body for POST /v1/plan/change.
type ChangePlanRequest struct {
	TargetPlan string `json:"target_plan" validate:"required,plantier"`
}

// deleteAccountResponse is the response body for DELETE /v1/account.
type deleteAccountResponse struct {
	DocumentsDeleted int64 `json:"documents_deleted"`
}

// PaymentHandler manages paid upgrades, free plan changes, and account
// deletion.
type PaymentHandler struct {
	transitions PlanTransitioner
	accounts    AccountPurger
	documents   DocumentPurger
	validator   *core.Validator
	logger      *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler with the provided
// dependencies.
func NewPaymentHandler(
	transitions PlanTransitioner,
	accounts AccountPurger,
	documents DocumentPurger,
	v *core.Validator,
	l *slog.Logger,
) *PaymentHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PaymentHandler{
		transitions: transitions,
		accounts:    accounts,
		documents:   documents,
		validator:   v,
		logger:      l,
	}
}

// RegisterRoutes mounts payment and account routes on the provided chi.Router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payment/create-order", h.CreateOrder)
	r.Post("/payment/verify", h.VerifyPayment)
	r.Post("/plan/change", h.ChangePlan)
	r.Delete("/account", h.DeleteAccount)
}

// CreateOrder handles POST /v1/payment/create-order. It registers a checkout
// intent with the gateway and returns the references the client needs to open
// the checkout UI. Free and unknown tiers are rejected before touching the
// gateway.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	order, err := h.transitions.InitiateUpgrade(r.Context(), actor.AccountID, types.PlanTier(req.PlanID))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: order})
}

// VerifyPayment handles POST /v1/payment/verify. The payment proof is
// verified against the gateway before any credit is applied; a duplicate
// reference returns the current state without crediting twice.
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req VerifyPaymentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.transitions.ConfirmUpgrade(
		r.Context(),
		actor.AccountID,
		types.PlanTier(req.PlanID),
		req.OrderID,
		req.PaymentRef,
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if result.AlreadyApplied {
		h.logger.Info("duplicate payment confirmation acknowledged",
			"account_id", actor.AccountID,
			"order_id", req.OrderID,
		)
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// ChangePlan handles POST /v1/plan/change: transitions that carry no payment.
// Downgrading to free resets the balance to the free allowance; moving
// between paid tiers rolls the new allowance on top of the current balance.
func (h *PaymentHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ChangePlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.transitions.ChangePlan(r.Context(), actor.AccountID, types.PlanTier(req.TargetPlan))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// DeleteAccount handles DELETE /v1/account. Documents are purged first so a
// failure cannot leave an account that still pays for storage it cannot see;
// the credit record goes last.
func (h *PaymentHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	deleted, err := h.documents.DeleteAllByAccount(r.Context(), actor.AccountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.accounts.Delete(r.Context(), actor.AccountID); err != nil {
		h.logger.Error("LEDGER_ALERT: documents purged but credit record deletion failed",
			"account_id", actor.AccountID,
			"documents_deleted", deleted,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	h.logger.Info("account deleted",
		"account_id", actor.AccountID,
		"documents_deleted", deleted,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: deleteAccountResponse{
		DocumentsDeleted: deleted,
	}})
}
