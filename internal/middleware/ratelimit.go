package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/apexhub/gateway/internal/httpx"
	"github.com/apexhub/gateway/internal/metrics"
	"github.com/apexhub/gateway/internal/models"
	"github.com/apexhub/gateway/internal/ratelimit"
)

// RateLimitMiddleware enforces every tier applying to the caller, most
// general first, rejecting on the first exhausted tier.
type RateLimitMiddleware struct {
	limiter           *ratelimit.Limiter
	fallback          models.RateLimitSpec
	collector         *metrics.Collector
	trustProxyHeaders bool
}

func NewRateLimitMiddleware(limiter *ratelimit.Limiter, fallback models.RateLimitSpec, collector *metrics.Collector, trustProxyHeaders bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:           limiter,
		fallback:          fallback,
		collector:         collector,
		trustProxyHeaders: trustProxyHeaders,
	}
}

func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := CallerFromContext(r.Context())
		tiers := ratelimit.DeriveTiers(caller, clientIP(r, m.trustProxyHeaders), m.fallback)

		results, err := m.limiter.Allow(r.Context(), tiers)
		if err != nil {
			log.Error().Err(err).Msg("rate limiter failure")
			httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "internal server error")
			return
		}

		for _, res := range results {
			w.Header().Set(fmt.Sprintf("X-RateLimit-Limit-%s", res.Tier.Name),
				fmt.Sprintf("%d", res.Tier.Spec.Requests))
			w.Header().Set(fmt.Sprintf("X-RateLimit-Remaining-%s", res.Tier.Name),
				fmt.Sprintf("%d", res.Remaining))
		}

		if len(results) > 0 {
			if last := results[len(results)-1]; !last.Allowed {
				m.collector.RecordRateLimitHit()
				retryAfter := int64(time.Until(last.ResetAt).Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				httpx.WriteError(w, http.StatusTooManyRequests, httpx.KindRateLimited,
					fmt.Sprintf("rate limit exceeded for %s tier: %d requests per %dms",
						last.Tier.Name, last.Tier.Spec.Requests, last.Tier.Spec.PeriodMs))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
