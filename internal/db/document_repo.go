package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"blueprint/internal/types"
)

// DocumentRepo stores generated documents. Rows are append-only: an update
// inserts a new versioned document rather than rewriting the original, so
// history is never lost. Every query is scoped by account_id; a document id
// belonging to another account behaves exactly like a missing one.
type DocumentRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewDocumentRepo creates a DocumentRepo backed by the given database
// connection (pool or transaction).
func NewDocumentRepo(db DBTX, logger *slog.Logger) *DocumentRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentRepo{db: db, logger: logger}
}

// Insert persists one document.
func (r *DocumentRepo) Insert(ctx context.Context, doc *types.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, account_id, project_name, tool_kind, tool_name, bundle_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		doc.ID,
		doc.AccountID,
		doc.ProjectName,
		doc.ToolKind,
		doc.ToolName,
		doc.BundleID,
		doc.Content,
		doc.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert document", err)
	}
	return nil
}

// GetByID returns the document if it exists and belongs to accountID.
func (r *DocumentRepo) GetByID(ctx context.Context, accountID, id string) (*types.Document, error) {
	var doc types.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, account_id, project_name, tool_kind, tool_name, bundle_id, content, created_at
		 FROM documents
		 WHERE id = $1 AND account_id = $2`,
		id,
		accountID,
	).Scan(&doc.ID, &doc.AccountID, &doc.ProjectName, &doc.ToolKind, &doc.ToolName, &doc.BundleID, &doc.Content, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundDocument, "document not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load document", err)
	}
	return &doc, nil
}

// List returns the account's documents matching the filter, newest first
// unless the filter asks for ascending order.
func (r *DocumentRepo) List(ctx context.Context, accountID string, filter types.DocumentFilter) ([]types.Document, error) {
	var sb strings.Builder
	sb.WriteString(
		`SELECT id, account_id, project_name, tool_kind, tool_name, bundle_id, content, created_at
		 FROM documents
		 WHERE account_id = $1`)
	args := []any{accountID}

	if filter.Tool != "" {
		args = append(args, filter.Tool)
		fmt.Fprintf(&sb, " AND tool_kind = $%d", len(args))
	}
	if filter.Project != "" {
		args = append(args, filter.Project+"%")
		fmt.Fprintf(&sb, " AND project_name LIKE $%d", len(args))
	}

	if filter.Order == types.SortOldestFirst {
		sb.WriteString(" ORDER BY created_at ASC")
	} else {
		sb.WriteString(" ORDER BY created_at DESC")
	}

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list documents", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.AccountID, &doc.ProjectName, &doc.ToolKind, &doc.ToolName, &doc.BundleID, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan document row", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate document rows", err)
	}
	return docs, nil
}

// CountRevisions returns how many documents already carry the given base
// name, counting the base itself and its "<base> - Updated N" revisions.
// The next revision number is the count.
func (r *DocumentRepo) CountRevisions(ctx context.Context, accountID, baseName string, tool types.ToolKind) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents
		 WHERE account_id = $1
		   AND tool_kind = $2
		   AND (project_name = $3 OR project_name LIKE $4)`,
		accountID,
		tool,
		baseName,
		baseName+" - Updated %",
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count document revisions", err)
	}
	return n, nil
}

// Delete removes the document if it belongs to accountID. Deleting a
// missing or foreign document reports not found.
func (r *DocumentRepo) Delete(ctx context.Context, accountID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND account_id = $2`,
		id,
		accountID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundDocument, "document not found", nil)
	}
	return nil
}

// DeleteAllByAccount removes every document the account owns. Used by
// account deletion.
func (r *DocumentRepo) DeleteAllByAccount(ctx context.Context, accountID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE account_id = $1`,
		accountID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete account documents", err)
	}
	return tag.RowsAffected(), nil
}
