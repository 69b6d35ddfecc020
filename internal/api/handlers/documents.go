// This file implements the document library endpoints: listing, retrieval,
// deletion, and the gzip tarball export gated on the plan's download feature.
package handlers

import (
	"archive/tar"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"blueprint/internal/billing"
	"blueprint/internal/core"
	"blueprint/internal/types"
)

// defaultListLimit bounds unpaginated listings; maxListLimit caps what a
// client may request per page.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// DocumentReader provides account-scoped document access. Mirrors the
// concrete db.DocumentRepo methods used by this handler.
type DocumentReader interface {
	List(ctx context.Context, accountID string, filter types.DocumentFilter) ([]types.Document, error)
	GetByID(ctx context.Context, accountID, id string) (*types.Document, error)
	Delete(ctx context.Context, accountID, id string) error
}

// BalanceReader exposes the account's current plan and balance.
// Satisfied by ledger.Ledger.
type BalanceReader interface {
	Balance(ctx context.Context, accountID string) (*types.CreditBalance, error)
}

// listResponse is the response body for GET /v1/documents.
type listResponse struct {
	Documents []types.Document `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentsHandler manages the document library.
type DocumentsHandler struct {
	docs    DocumentReader
	ledger  BalanceReader
	catalog billing.PlanCatalog
	logger  *slog.Logger
}

// NewDocumentsHandler creates a new DocumentsHandler with the provided
// dependencies.
func NewDocumentsHandler(docs DocumentReader, ledger BalanceReader, catalog billing.PlanCatalog, l *slog.Logger) *DocumentsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &DocumentsHandler{
		docs:    docs,
		ledger:  ledger,
		catalog: catalog,
		logger:  l,
	}
}

// RegisterRoutes mounts document routes on the provided chi.Router. The
// static /documents/archive route takes precedence over the /{id} wildcard.
func (h *DocumentsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/archive", h.Archive)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
	})
}

// List handles GET /v1/documents with tool/project filtering, sort order,
// and limit/offset pagination.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	filter, err := parseDocumentFilter(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	docs, err := h.docs.List(r.Context(), actor.AccountID, filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if docs == nil {
		docs = []types.Document{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: listResponse{
		Documents: docs,
		Count:     len(docs),
	}})
}

// Get handles GET /v1/documents/{id}. Documents belonging to other accounts
// are indistinguishable from missing ones.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	doc, err := h.docs.GetByID(r.Context(), actor.AccountID, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: doc})
}

// Delete handles DELETE /v1/documents/{id}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.docs.Delete(r.Context(), actor.AccountID, chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Archive handles GET /v1/documents/archive: a gzip tarball export of the
// account's full document library. Requires the plan's download feature;
// free-tier accounts receive plan_feature_locked (403).
func (h *DocumentsHandler) Archive(w http.ResponseWriter, r *http.Request) {
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
	if !limits.CanDownload {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodePlanFeatureLocked,
			"document download is not available on this plan",
			nil,
			map[string]any{"plan": string(balance.Plan), "feature": "download"},
		))
		return
	}

	docs, err := h.docs.List(r.Context(), actor.AccountID, types.DocumentFilter{
		Order: types.SortOldestFirst,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.tar.gz"`)
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for i, doc := range docs {
		name := archiveEntryName(i, doc)
		content := []byte(doc.Content)
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(content)),
			ModTime: doc.CreatedAt,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			h.logger.Error("archive export aborted mid-stream",
				"account_id", actor.AccountID, "error", err)
			return
		}
		if _, err := tw.Write(content); err != nil {
			h.logger.Error("archive export aborted mid-stream",
				"account_id", actor.AccountID, "error", err)
			return
		}
	}

	if err := tw.Close(); err != nil {
		h.logger.Error("failed to finalize archive tar stream", "error", err)
		return
	}
	if err := gz.Close(); err != nil {
		h.logger.Error("failed to finalize archive gzip stream", "error", err)
	}
}

// archiveEntryName builds a stable, filesystem-safe tarball member name.
func archiveEntryName(i int, doc types.Document) string {
	base := sanitizeFilename(doc.ProjectName)
	tool := sanitizeFilename(string(doc.ToolKind))
	return fmt.Sprintf("%03d-%s-%s.md", i+1, base, tool)
}

// sanitizeFilename replaces path separators and whitespace runs so project
// names cannot escape the archive root or produce awkward member names.
func sanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "-")
	s = replacer.Replace(s)
	if s == "" {
		return "document"
	}
	return s
}

// parseDocumentFilter extracts listing filters from query parameters.
func parseDocumentFilter(r *http.Request) (types.DocumentFilter, error) {
	q := r.URL.Query()
	filter := types.DocumentFilter{
		Project: q.Get("project"),
		Order:   types.SortNewestFirst,
		Limit:   defaultListLimit,
	}

	if tool := q.Get("tool"); tool != "" {
		kind := types.ToolKind(tool)
		if !types.ValidToolKind(kind) {
			return filter, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidTool,
				"unknown tool kind in filter",
				nil,
				map[string]any{"tool": tool},
			)
		}
		filter.Tool = kind
	}

	if sort := q.Get("sort"); sort == string(types.SortOldestFirst) {
		filter.Order = types.SortOldestFirst
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, types.NewAppError(
				types.ErrCodeValidationFieldFormat,
				"limit must be a positive integer",
				err,
			)
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, types.NewAppError(
				types.ErrCodeValidationFieldFormat,
				"offset must be a non-negative integer",
				err,
			)
		}
		filter.Offset = offset
	}

	return filter, nil
}
