package models

import (
	"time"

	"github.com/google/uuid"
)

// Key statuses as stored by the catalog service. Only active keys admit traffic.
const (
	KeyStatusActive   = "active"
	KeyStatusInactive = "inactive"
	KeyStatusRevoked  = "revoked"
)

// API visibility scopes. A gateway instance serves exactly one of them.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// APIKey is a caller credential as read from the key store. The gateway never
// creates or deletes keys; it only reads them and touches LastUsedAt.
type APIKey struct {
	ID          uuid.UUID      `json:"id"`
	Key         string         `json:"key"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	TargetAPIID uuid.UUID      `json:"target_api_id"`
	Status      string         `json:"status"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Override    *RateLimitSpec `json:"rate_limit_override,omitempty"`
	LastUsedAt  *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Expired reports whether the key carries an expiry timestamp in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// PlanLimit is one pricing plan's quota as configured in the catalog. Period
// is a human string such as "1 hour" or "30 days".
type PlanLimit struct {
	MaxRequests int    `json:"maxRequests"`
	Period      string `json:"period"`
}

// Pricing holds the optional per-plan quotas of an API definition.
type Pricing struct {
	Free *PlanLimit `json:"free,omitempty"`
	Pro  *PlanLimit `json:"pro,omitempty"`
}

// APIDefinition describes one proxied backend in the catalog.
type APIDefinition struct {
	ID         uuid.UUID `json:"id"`
	Slug       string    `json:"slug"`
	Visibility string    `json:"visibility"`
	BaseURL    string    `json:"base_url"`
	Pricing    *Pricing  `json:"pricing,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RateLimitSpec is one enforceable quota: Requests per PeriodMs window.
type RateLimitSpec struct {
	Requests int   `json:"requests"`
	PeriodMs int64 `json:"periodMs"`
}

// Usable reports whether the spec can actually admit traffic. Non-positive
// values mean "no limit configured", never "always reject".
func (s RateLimitSpec) Usable() bool {
	return s.Requests > 0 && s.PeriodMs > 0
}

// Period returns the window length as a duration.
func (s RateLimitSpec) Period() time.Duration {
	return time.Duration(s.PeriodMs) * time.Millisecond
}

// CallerContext is the per-request identity assembled by the authenticator and
// consumed by the rate limiter and router. It is never persisted.
type CallerContext struct {
	KeyID         uuid.UUID
	Key           string
	OwnerID       uuid.UUID
	IsPro         bool
	API           *APIDefinition
	EffectiveSpec RateLimitSpec
}
