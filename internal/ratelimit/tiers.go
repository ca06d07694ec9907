package ratelimit

import "github.com/apexhub/gateway/internal/models"

// Tier names reported in 429 responses and rate-limit headers.
const (
	TierPlan     = "plan"
	TierKey      = "key"
	TierFallback = "fallback"
)

// Tier is one quota applying to a request: a spec plus the identity whose
// counter it charges. Tiers with the same identity but different specs count
// independently.
type Tier struct {
	Name     string
	Identity string
	Spec     models.RateLimitSpec
}

// DeriveTiers returns the ordered list of tiers to enforce for a caller: the
// plan tier of the target API's pricing first, then the key's own spec. When
// no caller context exists or neither tier is usable, a single fallback tier
// keyed by the client IP applies.
func DeriveTiers(cc *models.CallerContext, clientIP string, fallback models.RateLimitSpec) []Tier {
	ipTier := Tier{Name: TierFallback, Identity: "ip:" + clientIP, Spec: fallback}

	if cc == nil {
		return []Tier{ipTier}
	}

	var tiers []Tier
	if spec, ok := planSpec(cc); ok {
		tiers = append(tiers, Tier{Name: TierPlan, Identity: cc.Key, Spec: spec})
	}
	// A key tier that repeats the plan tier's triple would charge the same
	// shared window twice, halving the caller's quota.
	keyTier := Tier{Name: TierKey, Identity: cc.Key, Spec: cc.EffectiveSpec}
	if cc.EffectiveSpec.Usable() && !chargesSameTriple(tiers, keyTier) {
		tiers = append(tiers, keyTier)
	}
	if len(tiers) == 0 {
		return []Tier{ipTier}
	}
	return tiers
}

// chargesSameTriple reports whether an already-derived tier counts against
// the same (identity, requests, periodMs) triple as t.
func chargesSameTriple(tiers []Tier, t Tier) bool {
	for _, existing := range tiers {
		if existing.Identity == t.Identity && existing.Spec == t.Spec {
			return true
		}
	}
	return false
}

// planSpec selects the plan-level quota for the caller, if any. A pro account
// with a configured pro plan uses only that plan: if the plan is unusable
// (non-positive limit or unparseable period) the caller gets no plan tier at
// all rather than falling back to the free plan.
func planSpec(cc *models.CallerContext) (models.RateLimitSpec, bool) {
	if cc.API == nil || cc.API.Pricing == nil {
		return models.RateLimitSpec{}, false
	}
	pricing := cc.API.Pricing

	if cc.IsPro && pricing.Pro != nil {
		return specFromPlan(pricing.Pro)
	}
	if pricing.Free != nil {
		return specFromPlan(pricing.Free)
	}
	return models.RateLimitSpec{}, false
}

func specFromPlan(plan *models.PlanLimit) (models.RateLimitSpec, bool) {
	if plan.MaxRequests <= 0 {
		return models.RateLimitSpec{}, false
	}
	periodMs, err := ParsePeriod(plan.Period)
	if err != nil {
		return models.RateLimitSpec{}, false
	}
	return models.RateLimitSpec{Requests: plan.MaxRequests, PeriodMs: periodMs}, true
}
