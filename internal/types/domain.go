package types

import "time"

// CreditBalance is the authoritative per-account entitlement record.
// It is mutated only by the credit ledger and the plan transition manager;
// every mutation keeps Credits >= 0. A record is created lazily with
// free-tier defaults the first time an account is seen.
type CreditBalance struct {
	AccountID            string    `json:"account_id"`
	Credits              int       `json:"credits"`
	Plan                 PlanTier  `json:"plan"`
	FreeUpdatesRemaining int       `json:"free_updates_remaining"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// PlanLimits defines everything a plan grants: monthly allowance, per-action
// credit costs, and feature gates. This is static catalog data, never
// duplicated at call sites.
type PlanLimits struct {
	Name                   string `json:"name"`
	MonthlyCreditAllowance int    `json:"monthly_credit_allowance"`
	SingleReportCost       int    `json:"single_report_cost"`
	BundleCost             int    `json:"bundle_cost"`
	UpdateCost             int    `json:"update_cost"`
	FreeUpdatesPerCycle    int    `json:"free_updates_per_cycle"`
	CanDownload            bool   `json:"can_download"`
	CanUpdate              bool   `json:"can_update"`
	CanUseBundle           bool   `json:"can_use_bundle"`
	// PriceMinorUnits is the checkout price for purchasing this plan,
	// in the gateway's minor currency units. Zero for the free tier.
	PriceMinorUnits int64 `json:"-"`
}

// Document is one generated artifact owned by an account. Immutable once
// created except for deletion; an "update" produces a new versioned Document.
type Document struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"-"`
	ProjectName string    `json:"project_name"`
	ToolKind    ToolKind  `json:"tool_kind"`
	ToolName    string    `json:"tool_name"`
	// BundleID groups the four documents of one bundle generation under a
	// single logical transaction id for observability. Empty for single
	// reports and updates.
	BundleID  string    `json:"bundle_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationRequest is the transient value object describing one billable
// generation action. It is never persisted; it produces Documents on success
// or nothing on failure.
type GenerationRequest struct {
	Kind        GenerationKind
	Tool        ToolKind // set for single reports
	DocumentID  string   // set for updates: the document being revised
	ProjectName string
	Description string
	Answers     []string
	NewFeatures string // set for updates: requested additions, opaque to the core
}

// GenerationOutcome is the result of a successful generation action.
type GenerationOutcome struct {
	Documents        []Document `json:"documents"`
	CreditsRemaining int        `json:"credits_remaining"`
	FreeUpdateUsed   bool       `json:"free_update_used,omitempty"`
	// PartialPersistence is set when the generator succeeded but some
	// documents could not be stored. The persisted subset is retained and
	// the debit still applies.
	PartialPersistence bool `json:"partial_persistence,omitempty"`
	// LedgerReconciliation flags the should-not-happen case where the debit
	// failed after generator success. The outcome is still successful; ops
	// follow up on the ledger.
	LedgerReconciliation bool `json:"-"`
}

// PaymentOrder is the intent reference produced when an upgrade is initiated.
// The actual checkout happens on the gateway's side.
type PaymentOrder struct {
	OrderID        string   `json:"order_id"`
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	PlanID         PlanTier `json:"plan_id"`
	PlanName       string   `json:"plan_name"`
	PublishableKey string   `json:"publishable_key"`
}

// DocumentFilter narrows and orders a document listing.
type DocumentFilter struct {
	Tool    ToolKind // empty = all kinds
	Project string   // empty = all projects; matched as prefix
	Order   SortOrder
	Limit   int
	Offset  int
}
