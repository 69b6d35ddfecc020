// This file implements the credit balance endpoint: the account's remaining
// credits, current plan, free updates, and feature gates in one read.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blueprint/internal/billing"
	"blueprint/internal/core"
	"blueprint/internal/types"
)

// creditsResponse is the response body for GET /v1/credits.
type creditsResponse struct {
	Credits              int            `json:"credits"`
	Plan                 types.PlanTier `json:"plan"`
	PlanName             string         `json:"plan_name"`
	FreeUpdatesRemaining int            `json:"free_updates_remaining"`
	Features             planFeatures   `json:"features"`
}

// planFeatures summarizes what the current plan allows.
type planFeatures struct {
	CanDownload  bool `json:"can_download"`
	CanUpdate    bool `json:"can_update"`
	CanUseBundle bool `json:"can_use_bundle"`
}

// CreditsHandler exposes the account's entitlement snapshot.
type CreditsHandler struct {
	ledger  BalanceReader
	catalog billing.PlanCatalog
	logger  *slog.Logger
}

// NewCreditsHandler creates a new CreditsHandler with the provided
// dependencies.
func NewCreditsHandler(ledger BalanceReader, catalog billing.PlanCatalog, l *slog.Logger) *CreditsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &CreditsHandler{
		ledger:  ledger,
		catalog: catalog,
		logger:  l,
	}
}

// RegisterRoutes mounts the credits route on the provided chi.Router.
func (h *CreditsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/credits", h.Get)
}

// Get handles GET /v1/credits. The balance record is created lazily with
// free-tier defaults, so first-time accounts see 50 credits on the free plan.
func (h *CreditsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(r.Context(), actor.AccountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	limits := h.catalog.Limits(balance.Plan)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: creditsResponse{
		Credits:              balance.Credits,
		Plan:                 balance.Plan,
		PlanName:             limits.Name,
		FreeUpdatesRemaining: balance.FreeUpdatesRemaining,
		Features: planFeatures{
			CanDownload:  limits.CanDownload,
			CanUpdate:    limits.CanUpdate,
			CanUseBundle: limits.CanUseBundle,
		},
	}})
}
