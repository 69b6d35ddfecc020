package types

// PlanTier identifies the subscription plan for an account.
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanStarter PlanTier = "starter"
	PlanPro     PlanTier = "pro"
)

// ValidPlanTier reports whether the given tier is a known plan.
func ValidPlanTier(t PlanTier) bool {
	switch t {
	case PlanFree, PlanStarter, PlanPro:
		return true
	}
	return false
}

// ToolKind identifies the document type produced by the generator.
type ToolKind string

const (
	ToolArchitecture ToolKind = "architecture"
	ToolUserFlow     ToolKind = "userflow"
	ToolDatabase     ToolKind = "database"
	ToolPRD          ToolKind = "prd"
)

// AllToolKinds is the complete set of document types. A bundle produces
// exactly one document per entry, in this order.
var AllToolKinds = []ToolKind{ToolPRD, ToolArchitecture, ToolDatabase, ToolUserFlow}

// ValidToolKind reports whether the given kind is a known tool.
func ValidToolKind(k ToolKind) bool {
	switch k {
	case ToolArchitecture, ToolUserFlow, ToolDatabase, ToolPRD:
		return true
	}
	return false
}

// DisplayName returns the human-readable tool name stored alongside documents.
func (k ToolKind) DisplayName() string {
	switch k {
	case ToolArchitecture:
		return "System Architecture"
	case ToolUserFlow:
		return "User Flow"
	case ToolDatabase:
		return "Database Schema"
	case ToolPRD:
		return "PRD Generator"
	default:
		return string(k)
	}
}

// GenerationKind identifies the billable action being requested.
type GenerationKind string

const (
	GenerationSingle GenerationKind = "single_report"
	GenerationBundle GenerationKind = "bundle"
	GenerationUpdate GenerationKind = "update"
)

// TransitionPolicy determines how the credit balance is treated when the
// plan changes.
type TransitionPolicy string

const (
	// PolicyRollover adds the destination plan's allowance to the
	// existing balance.
	PolicyRollover TransitionPolicy = "rollover"
	// PolicyReset discards the existing balance and sets it to exactly the
	// destination plan's allowance. Used only when downgrading to free.
	PolicyReset TransitionPolicy = "reset"
)

// PolicyFor returns the balance policy applied when moving to target.
func PolicyFor(target PlanTier) TransitionPolicy {
	if target == PlanFree {
		return PolicyReset
	}
	return PolicyRollover
}

// GenerationPhase tracks where a generation request is in its lifecycle.
// It replaces the pile of independent booleans the workflow would otherwise
// accumulate; a request is always in exactly one phase.
type GenerationPhase string

const (
	PhaseAuthorizing GenerationPhase = "authorizing"
	PhaseGenerating  GenerationPhase = "generating"
	PhasePersisting  GenerationPhase = "persisting"
	PhaseCommitting  GenerationPhase = "committing"
	PhaseDone        GenerationPhase = "done"
	PhaseFailed      GenerationPhase = "failed"
)

// SortOrder controls document listing order.
type SortOrder string

const (
	SortNewestFirst SortOrder = "newest"
	SortOldestFirst SortOrder = "oldest"
)
