// Package generation coordinates billable document generation: it resolves
// the account's plan, pre-authorizes the cost, calls the generation service,
// persists the results, and commits the charge only after the generator has
// succeeded. A failed generation never costs the user anything.
package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"blueprint/internal/billing"
	"blueprint/internal/external"
	"blueprint/internal/ledger"
	"blueprint/internal/types"
)

// DocumentStore is the persistence surface the orchestrator needs.
// *db.DocumentRepo satisfies it.
type DocumentStore interface {
	Insert(ctx context.Context, doc *types.Document) error
	GetByID(ctx context.Context, accountID, id string) (*types.Document, error)
	CountRevisions(ctx context.Context, accountID, baseName string, tool types.ToolKind) (int, error)
}

// Orchestrator runs the generate/persist/charge pipeline for all three
// billable actions: single reports, bundles, and updates.
type Orchestrator struct {
	catalog      billing.PlanCatalog
	ledger       *ledger.Ledger
	entitlements *ledger.Entitlements
	store        DocumentStore
	generator    external.DocumentGenerator
	logger       *slog.Logger
	now          func() time.Time // injectable for tests
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(
	catalog billing.PlanCatalog,
	creditLedger *ledger.Ledger,
	entitlements *ledger.Entitlements,
	store DocumentStore,
	generator external.DocumentGenerator,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		catalog:      catalog,
		ledger:       creditLedger,
		entitlements: entitlements,
		store:        store,
		generator:    generator,
		logger:       logger,
		now:          time.Now,
	}
}

// GenerateSingle produces one document of the requested kind. The account is
// charged the plan's single-report cost, debited only after the generator
// and persistence both succeed.
func (o *Orchestrator) GenerateSingle(ctx context.Context, accountID string, req types.GenerationRequest) (*types.GenerationOutcome, error) {
	if !types.ValidToolKind(req.Tool) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidTool, "unknown tool kind: "+string(req.Tool), nil)
	}

	bal, err := o.ledger.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cost := o.catalog.CostOf(bal.Plan, types.GenerationSingle)

	if err := o.ledger.Authorize(ctx, accountID, cost); err != nil {
		return nil, err
	}

	content, err := o.generator.Generate(ctx, buildPrompt(req.Tool, req.ProjectName, req.Description, req.Answers))
	if err != nil {
		return nil, err
	}

	doc := types.Document{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ProjectName: req.ProjectName,
		ToolKind:    req.Tool,
		ToolName:    req.Tool.DisplayName(),
		Content:     content,
		CreatedAt:   o.now().UTC(),
	}
	if err := o.store.Insert(ctx, &doc); err != nil {
		// Nothing stored, nothing charged.
		return nil, types.NewAppError(types.ErrCodeInternalPersistence, "generated document could not be stored", err)
	}

	remaining, reconcile := o.commitDebit(ctx, accountID, cost, "single report")

	return &types.GenerationOutcome{
		Documents:            []types.Document{doc},
		CreditsRemaining:     remaining,
		LedgerReconciliation: reconcile,
	}, nil
}

// GenerateBundle produces all four document kinds for one project in a
// single action, charged at the plan's bundle price. The generations run in
// parallel; all four must succeed before anything is persisted or charged.
func (o *Orchestrator) GenerateBundle(ctx context.Context, accountID string, req types.GenerationRequest) (*types.GenerationOutcome, error) {
	bal, err := o.ledger.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	limits := o.catalog.Limits(bal.Plan)
	if !limits.CanUseBundle {
		return nil, types.NewAppError(types.ErrCodePlanFeatureLocked, "bundle generation is not available on the "+limits.Name+" plan", nil)
	}
	cost := o.catalog.CostOf(bal.Plan, types.GenerationBundle)

	if err := o.ledger.Authorize(ctx, accountID, cost); err != nil {
		return nil, err
	}

	contents := make([]string, len(types.AllToolKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, tool := range types.AllToolKinds {
		i, tool := i, tool
		g.Go(func() error {
			content, genErr := o.generator.Generate(gctx, buildPrompt(tool, req.ProjectName, req.Description, req.Answers))
			if genErr != nil {
				return genErr
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// One failed generation fails the bundle; no charge.
		return nil, err
	}

	bundleID := uuid.NewString()
	now := o.now().UTC()

	var docs []types.Document
	var failedInserts int
	for i, tool := range types.AllToolKinds {
		doc := types.Document{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			ProjectName: req.ProjectName,
			ToolKind:    tool,
			ToolName:    tool.DisplayName(),
			BundleID:    bundleID,
			Content:     contents[i],
			CreatedAt:   now,
		}
		if err := o.store.Insert(ctx, &doc); err != nil {
			failedInserts++
			o.logger.ErrorContext(ctx, "bundle document could not be stored",
				"account_id", accountID,
				"bundle_id", bundleID,
				"tool", string(tool),
				"error", err,
			)
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		// All inserts failed; treat as persistence failure, no charge.
		return nil, types.NewAppError(types.ErrCodeInternalPersistence, "no bundle documents could be stored", nil)
	}

	remaining, reconcile := o.commitDebit(ctx, accountID, cost, "bundle")

	return &types.GenerationOutcome{
		Documents:            docs,
		CreditsRemaining:     remaining,
		PartialPersistence:   failedInserts > 0,
		LedgerReconciliation: reconcile,
	}, nil
}

// UpdateDocument revises an existing document into a new versioned one.
// A plan-granted free update is preferred over spending credits; the
// free-or-charge decision is resolved atomically at commit time so two
// concurrent updates cannot both claim the last free update.
func (o *Orchestrator) UpdateDocument(ctx context.Context, accountID string, req types.GenerationRequest) (*types.GenerationOutcome, error) {
	bal, err := o.ledger.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	limits := o.catalog.Limits(bal.Plan)
	if !limits.CanUpdate {
		return nil, types.NewAppError(types.ErrCodePlanFeatureLocked, "report updates are not available on the "+limits.Name+" plan", nil)
	}
	cost := o.catalog.CostOf(bal.Plan, types.GenerationUpdate)

	prior, err := o.store.GetByID(ctx, accountID, req.DocumentID)
	if err != nil {
		return nil, err
	}

	// If no free update is available now, require the credits up front.
	// Commit re-resolves atomically against concurrent consumers.
	funding, err := o.entitlements.PlanFunding(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if funding == ledger.FundingCredits {
		if err := o.ledger.Authorize(ctx, accountID, cost); err != nil {
			return nil, err
		}
	}

	content, err := o.generator.Generate(ctx, buildUpdatePrompt(prior, req.NewFeatures))
	if err != nil {
		return nil, err
	}

	base := baseProjectName(prior.ProjectName)
	revs, err := o.store.CountRevisions(ctx, accountID, base, prior.ToolKind)
	if err != nil {
		return nil, err
	}

	doc := types.Document{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ProjectName: revisionName(base, revs),
		ToolKind:    prior.ToolKind,
		ToolName:    prior.ToolName,
		Content:     content,
		CreatedAt:   o.now().UTC(),
	}
	if err := o.store.Insert(ctx, &doc); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalPersistence, "updated document could not be stored", err)
	}

	applied, remaining, err := o.entitlements.ConsumeFreeUpdateOrCharge(ctx, o.ledger, accountID, cost)
	reconcile := false
	if err != nil {
		// The document exists but neither funding source could cover it
		// (a concurrent action drained both between authorize and commit).
		// The update stands; the ledger gap goes to ops.
		o.logger.ErrorContext(ctx, "LEDGER_ALERT: update committed without funding",
			"account_id", accountID,
			"document_id", doc.ID,
			"cost", cost,
			"error", err,
		)
		reconcile = true
		if bal2, berr := o.ledger.Balance(ctx, accountID); berr == nil {
			remaining = bal2.Credits
		}
	}

	return &types.GenerationOutcome{
		Documents:            []types.Document{doc},
		CreditsRemaining:     remaining,
		FreeUpdateUsed:       err == nil && applied == ledger.FundingFreeUpdate,
		LedgerReconciliation: reconcile,
	}, nil
}

// commitDebit applies the deferred charge after a successful generation.
// Authorization already passed, so a denial here means a concurrent action
// spent the credits in the window; the generation is not rolled back, the
// gap is flagged for reconciliation instead.
func (o *Orchestrator) commitDebit(ctx context.Context, accountID string, cost int, action string) (remaining int, reconcile bool) {
	remaining, err := o.ledger.Debit(ctx, accountID, cost)
	if err == nil {
		return remaining, false
	}

	o.logger.ErrorContext(ctx, "LEDGER_ALERT: post-generation debit failed",
		"account_id", accountID,
		"action", action,
		"cost", cost,
		"error", err,
	)
	if bal, berr := o.ledger.Balance(ctx, accountID); berr == nil {
		remaining = bal.Credits
	}
	return remaining, true
}
