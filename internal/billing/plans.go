// Package billing provides the plan catalog and plan transition logic.
package billing

import (
	"fmt"

	"blueprint/internal/types"
)

// PlanCatalog is the single source of truth for what each plan allows and
// what each action costs. It is pure lookup: no state, no failure modes.
type PlanCatalog interface {
	// Limits returns the full limit set for the given plan tier.
	// For unknown tiers, returns the most restrictive (free) limits to
	// fail safely.
	Limits(tier types.PlanTier) types.PlanLimits

	// CostOf returns the credit cost of the given action on the given plan.
	// It must be total over all known (plan, action) pairs; an unknown
	// action is a programming error and panics.
	CostOf(tier types.PlanTier, action types.GenerationKind) int

	// AllowanceOf returns the monthly credit allowance for the given plan.
	AllowanceOf(tier types.PlanTier) int
}

// staticPlanCatalog is a compile-time plan catalog backed by an in-memory map.
// It implements PlanCatalog and is the standard implementation for production use.
type staticPlanCatalog struct {
	limits map[types.PlanTier]types.PlanLimits
}

// planDefaults defines the hardcoded plan table.
//
//	| Plan    | Monthly | Single | Bundle | Update | Free updates |
//	|---------|---------|--------|--------|--------|--------------|
//	| Free    | 50      | 20     | 70     | 10     | 0            |
//	| Starter | 120     | 20     | 70     | 10     | 1            |
//	| Pro     | 240     | 30     | 90     | 10     | 3            |
//
// Free accounts cannot download, update, or use bundles.
var planDefaults = map[types.PlanTier]types.PlanLimits{
	types.PlanFree: {
		Name:                   "Free",
		MonthlyCreditAllowance: 50,
		SingleReportCost:       20,
		BundleCost:             70,
		UpdateCost:             10,
		FreeUpdatesPerCycle:    0,
		CanDownload:            false,
		CanUpdate:              false,
		CanUseBundle:           false,
		PriceMinorUnits:        0,
	},
	types.PlanStarter: {
		Name:                   "Starter",
		MonthlyCreditAllowance: 120,
		SingleReportCost:       20,
		BundleCost:             70,
		UpdateCost:             10,
		FreeUpdatesPerCycle:    1,
		CanDownload:            true,
		CanUpdate:              true,
		CanUseBundle:           true,
		PriceMinorUnits:        49900,
	},
	types.PlanPro: {
		Name:                   "Pro",
		MonthlyCreditAllowance: 240,
		SingleReportCost:       30,
		BundleCost:             90,
		UpdateCost:             10,
		FreeUpdatesPerCycle:    3,
		CanDownload:            true,
		CanUpdate:              true,
		CanUseBundle:           true,
		PriceMinorUnits:        99900,
	},
}

// freeLimits is cached to avoid map lookups on the fallback path.
var freeLimits = planDefaults[types.PlanFree]

// NewStaticPlanCatalog returns a PlanCatalog backed by the hardcoded plan
// table. This is the standard production implementation; no database or
// external service is required.
func NewStaticPlanCatalog() PlanCatalog {
	// Copy the defaults into a new map so callers cannot mutate the package-level variable.
	m := make(map[types.PlanTier]types.PlanLimits, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanCatalog{limits: m}
}

// Limits returns the limit set for the given plan tier.
// If the tier is unknown, it returns the free tier limits as a safe default.
func (c *staticPlanCatalog) Limits(tier types.PlanTier) types.PlanLimits {
	if l, ok := c.limits[tier]; ok {
		return l
	}
	return freeLimits
}

// CostOf returns the credit cost of action on tier. Unknown actions panic:
// cost lookups are driven by a closed enum, so a miss is a bug in the
// caller, not a runtime condition to recover from.
func (c *staticPlanCatalog) CostOf(tier types.PlanTier, action types.GenerationKind) int {
	l := c.Limits(tier)
	switch action {
	case types.GenerationSingle:
		return l.SingleReportCost
	case types.GenerationBundle:
		return l.BundleCost
	case types.GenerationUpdate:
		return l.UpdateCost
	default:
		panic(fmt.Sprintf("billing: unknown generation kind %q", action))
	}
}

// AllowanceOf returns the monthly credit allowance for the given plan.
func (c *staticPlanCatalog) AllowanceOf(tier types.PlanTier) int {
	return c.Limits(tier).MonthlyCreditAllowance
}
