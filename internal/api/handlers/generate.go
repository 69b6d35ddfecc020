// Package handlers contains the HTTP handler implementations for the
// Blueprint API.
//
// This file implements the generation endpoints: single reports, bundles,
// and document updates. Credit authorization and charging live in the
// orchestrator; handlers only translate HTTP to domain calls.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blueprint/internal/core"
	"blueprint/internal/types"
)

// DocumentOrchestrator runs the generate/persist/charge pipeline. Mirrors the
// concrete generation.Orchestrator methods used by this handler.
type DocumentOrchestrator interface {
	GenerateSingle(ctx context.Context, accountID string, req types.GenerationRequest) (*types.GenerationOutcome, error)
	GenerateBundle(ctx context.Context, accountID string, req types.GenerationRequest) (*types.GenerationOutcome, error)
	UpdateDocument(ctx context.Context, accountID string, req types.GenerationRequest) (*types.GenerationOutcome, error)
}

// GenerateRequest is the request body for POST /v1/generate/{toolKind} and
// POST /v1/generate/bundle.
type GenerateRequest struct {
	ProjectName string   `json:"project_name" validate:"required,min=1,max=200"`
	Description string   `json:"description" validate:"required,min=1,max=4000"`
	Answers     []string `json:"answers,omitempty" validate:"max=20,dive,max=1000"`
}

// UpdateDocumentRequest is the request body for POST /v1/documents/{id}/update.
type UpdateDocumentRequest struct {
	NewFeatures string `json:"new_features" validate:"required,min=1,max=4000"`
}

// singleResponse is the response body for a single report generation.
type singleResponse struct {
	Document         types.Document `json:"document"`
	CreditsRemaining int            `json:"credits_remaining"`
}

// bundleResponse is the response body for a bundle generation. Documents are
// keyed by tool kind.
type bundleResponse struct {
	Bundle             map[types.ToolKind]types.Document `json:"bundle"`
	BundleID           string                            `json:"bundle_id"`
	CreditsRemaining   int                               `json:"credits_remaining"`
	PartialPersistence bool                              `json:"partial_persistence,omitempty"`
}

// updateResponse is the response body for a document update.
type updateResponse struct {
	Document         types.Document `json:"document"`
	CreditsRemaining int            `json:"credits_remaining"`
	FreeUpdateUsed   bool           `json:"free_update_used"`
}

// GenerateHandler exposes the billable generation actions.
type GenerateHandler struct {
	orchestrator DocumentOrchestrator
	validator    *core.Validator
	logger       *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler with the provided
// dependencies.
func NewGenerateHandler(orchestrator DocumentOrchestrator, v *core.Validator, l *slog.Logger) *GenerateHandler {
	if l == nil {
		l = slog.Default()
	}
	return &GenerateHandler{
		orchestrator: orchestrator,
		validator:    v,
		logger:       l,
	}
}

// RegisterRoutes mounts generation routes on the provided chi.Router.
// The static /generate/bundle route takes precedence over the
// /generate/{toolKind} wildcard.
func (h *GenerateHandler) RegisterRoutes(r chi.Router) {
	r.Post("/generate/bundle", h.GenerateBundle)
	r.Post("/generate/{toolKind}", h.GenerateSingle)
	r.Post("/documents/{id}/update", h.UpdateDocument)
}

// GenerateSingle handles POST /v1/generate/{toolKind}.
//
//  1. Validate the tool kind from the URL.
//  2. Decode and validate the request body.
//  3. Run the orchestrator pipeline (authorize, generate, persist, debit).
//  4. Return 201 Created with the document and remaining balance.
func (h *GenerateHandler) GenerateSingle(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	tool := types.ToolKind(chi.URLParam(r, "toolKind"))
	if !types.ValidToolKind(tool) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidTool,
			"unknown tool kind",
			nil,
			map[string]any{"tool": string(tool)},
		))
		return
	}

	var req GenerateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	outcome, err := h.orchestrator.GenerateSingle(r.Context(), actor.AccountID, types.GenerationRequest{
		Kind:        types.GenerationSingle,
		Tool:        tool,
		ProjectName: req.ProjectName,
		Description: req.Description,
		Answers:     req.Answers,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: singleResponse{
		Document:         outcome.Documents[0],
		CreditsRemaining: outcome.CreditsRemaining,
	}})
}

// GenerateBundle handles POST /v1/generate/bundle. All four document kinds
// are generated for one bundle price; generation is all-or-nothing while
// persistence tolerates per-document failure.
func (h *GenerateHandler) GenerateBundle(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	outcome, err := h.orchestrator.GenerateBundle(r.Context(), actor.AccountID, types.GenerationRequest{
		Kind:        types.GenerationBundle,
		ProjectName: req.ProjectName,
		Description: req.Description,
		Answers:     req.Answers,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	bundle := make(map[types.ToolKind]types.Document, len(outcome.Documents))
	bundleID := ""
	for _, doc := range outcome.Documents {
		bundle[doc.ToolKind] = doc
		bundleID = doc.BundleID
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: bundleResponse{
		Bundle:             bundle,
		BundleID:           bundleID,
		CreditsRemaining:   outcome.CreditsRemaining,
		PartialPersistence: outcome.PartialPersistence,
	}})
}

// UpdateDocument handles POST /v1/documents/{id}/update. The update produces
// a new versioned document; the original is never mutated.
func (h *GenerateHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	documentID := chi.URLParam(r, "id")

	var req UpdateDocumentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	outcome, err := h.orchestrator.UpdateDocument(r.Context(), actor.AccountID, types.GenerationRequest{
		Kind:        types.GenerationUpdate,
		DocumentID:  documentID,
		NewFeatures: req.NewFeatures,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: updateResponse{
		Document:         outcome.Documents[0],
		CreditsRemaining: outcome.CreditsRemaining,
		FreeUpdateUsed:   outcome.FreeUpdateUsed,
	}})
}

// requireActor fetches the authenticated Actor from context, writing a 401
// response when it is absent. Shared by all handler files in this package.
func requireActor(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return types.Actor{}, false
	}
	return actor, true
}
