package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexhub/gateway/internal/models"
)

var defaultSpec = models.RateLimitSpec{Requests: 100, PeriodMs: 3600000}

func caller(isPro bool, pricing *models.Pricing, effective models.RateLimitSpec) *models.CallerContext {
	return &models.CallerContext{
		Key:           "key-abc",
		IsPro:         isPro,
		API:           &models.APIDefinition{Slug: "weather", Pricing: pricing},
		EffectiveSpec: effective,
	}
}

func TestDeriveTiers(t *testing.T) {
	t.Run("nil caller falls back to IP tier", func(t *testing.T) {
		tiers := DeriveTiers(nil, "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 1)
		assert.Equal(t, TierFallback, tiers[0].Name)
		assert.Equal(t, "ip:10.0.0.1", tiers[0].Identity)
		assert.Equal(t, defaultSpec, tiers[0].Spec)
	})

	t.Run("pro account with valid pro plan", func(t *testing.T) {
		pricing := &models.Pricing{
			Free: &models.PlanLimit{MaxRequests: 10, Period: "1 hour"},
			Pro:  &models.PlanLimit{MaxRequests: 1000, Period: "1 day"},
		}
		tiers := DeriveTiers(caller(true, pricing, defaultSpec), "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 2)
		assert.Equal(t, TierPlan, tiers[0].Name)
		assert.Equal(t, models.RateLimitSpec{Requests: 1000, PeriodMs: 86400000}, tiers[0].Spec)
		assert.Equal(t, TierKey, tiers[1].Name)
	})

	t.Run("non-pro account uses free plan", func(t *testing.T) {
		pricing := &models.Pricing{
			Free: &models.PlanLimit{MaxRequests: 10, Period: "1 hour"},
			Pro:  &models.PlanLimit{MaxRequests: 1000, Period: "1 day"},
		}
		tiers := DeriveTiers(caller(false, pricing, defaultSpec), "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 2)
		assert.Equal(t, TierPlan, tiers[0].Name)
		assert.Equal(t, models.RateLimitSpec{Requests: 10, PeriodMs: 3600000}, tiers[0].Spec)
	})

	t.Run("pro account without pro plan uses free plan", func(t *testing.T) {
		pricing := &models.Pricing{
			Free: &models.PlanLimit{MaxRequests: 10, Period: "1 hour"},
		}
		tiers := DeriveTiers(caller(true, pricing, defaultSpec), "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 2)
		assert.Equal(t, models.RateLimitSpec{Requests: 10, PeriodMs: 3600000}, tiers[0].Spec)
	})

	// Pins the inherited quirk: a configured pro plan whose period does not
	// parse yields no plan tier at all, not a fallback to the free plan.
	t.Run("pro plan with bad period yields no plan tier", func(t *testing.T) {
		pricing := &models.Pricing{
			Free: &models.PlanLimit{MaxRequests: 10, Period: "1 hour"},
			Pro:  &models.PlanLimit{MaxRequests: 1000, Period: "eventually"},
		}
		tiers := DeriveTiers(caller(true, pricing, defaultSpec), "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 1)
		assert.Equal(t, TierKey, tiers[0].Name)
	})

	t.Run("zero max requests disables the tier, never always-rejects", func(t *testing.T) {
		pricing := &models.Pricing{
			Free: &models.PlanLimit{MaxRequests: 0, Period: "1 hour"},
		}
		tiers := DeriveTiers(caller(false, pricing, defaultSpec), "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 1)
		assert.Equal(t, TierKey, tiers[0].Name)
	})

	t.Run("no pricing leaves only the key tier", func(t *testing.T) {
		tiers := DeriveTiers(caller(false, nil, defaultSpec), "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 1)
		assert.Equal(t, TierKey, tiers[0].Name)
		assert.Equal(t, "key-abc", tiers[0].Identity)
	})

	t.Run("no usable tier at all falls back to IP tier", func(t *testing.T) {
		tiers := DeriveTiers(caller(false, nil, models.RateLimitSpec{}), "10.0.0.9", defaultSpec)
		require.Len(t, tiers, 1)
		assert.Equal(t, TierFallback, tiers[0].Name)
		assert.Equal(t, "ip:10.0.0.9", tiers[0].Identity)
	})

	t.Run("key tier matching the plan tier's triple is derived once", func(t *testing.T) {
		// Realistic collision: the API's free plan equals the gateway default
		// that the key normalized to. Charging both would halve the quota.
		pricing := &models.Pricing{
			Free: &models.PlanLimit{MaxRequests: 100, Period: "1 hour"},
		}
		tiers := DeriveTiers(caller(false, pricing, defaultSpec), "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 1)
		assert.Equal(t, TierPlan, tiers[0].Name)
		assert.Equal(t, defaultSpec, tiers[0].Spec)
	})

	t.Run("plan tier is evaluated before key tier", func(t *testing.T) {
		pricing := &models.Pricing{
			Free: &models.PlanLimit{MaxRequests: 5, Period: "1 hour"},
		}
		tiers := DeriveTiers(caller(false, pricing, models.RateLimitSpec{Requests: 2, PeriodMs: 3600000}), "10.0.0.1", defaultSpec)
		require.Len(t, tiers, 2)
		assert.Equal(t, TierPlan, tiers[0].Name)
		assert.Equal(t, TierKey, tiers[1].Name)
	})
}
