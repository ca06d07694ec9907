package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/apexhub/gateway/internal/httpx"
	"github.com/apexhub/gateway/internal/models"
	"github.com/apexhub/gateway/internal/store"
)

// KeyHeader carries the caller's credential. It is stripped before the
// request reaches any upstream.
const KeyHeader = "X-API-Key"

const lastUsedWriteTimeout = 5 * time.Second

// KeyStore is the slice of the key store the authenticator needs.
type KeyStore interface {
	LookupKey(ctx context.Context, key string) (*store.KeyLookup, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

// AuthMiddleware resolves the credential header to a caller context. Every
// request performs a fresh store lookup: status and expiry must be evaluated
// live, never from a cache.
type AuthMiddleware struct {
	keys        KeyStore
	defaultSpec models.RateLimitSpec
}

func NewAuthMiddleware(keys KeyStore, defaultSpec models.RateLimitSpec) *AuthMiddleware {
	return &AuthMiddleware{keys: keys, defaultSpec: defaultSpec}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(KeyHeader)
		if presented == "" {
			httpx.WriteError(w, http.StatusUnauthorized, httpx.KindUnauthorized, "API key is required")
			return
		}

		lookup, err := m.keys.LookupKey(r.Context(), presented)
		if err != nil {
			log.Error().Err(err).Msg("key store lookup failed")
			httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "internal server error")
			return
		}
		if lookup == nil {
			log.Warn().Str("presented_key", presented).Msg("unknown API key presented")
			httpx.WriteError(w, http.StatusUnauthorized, httpx.KindUnauthorized, "invalid API key")
			return
		}

		// Status before expiry: a revoked key is reported as revoked even
		// when it has also expired.
		if lookup.Key.Status != models.KeyStatusActive {
			httpx.WriteError(w, http.StatusForbidden, httpx.KindForbidden,
				fmt.Sprintf("API key is %s", lookup.Key.Status))
			return
		}
		if lookup.Key.Expired(time.Now()) {
			httpx.WriteError(w, http.StatusForbidden, httpx.KindForbidden, "API key has expired")
			return
		}

		// Best-effort usage stamp; a failed write must never fail the request.
		go m.touchLastUsed(lookup.Key.ID)

		cc := &models.CallerContext{
			KeyID:         lookup.Key.ID,
			Key:           lookup.Key.Key,
			OwnerID:       lookup.Key.OwnerID,
			IsPro:         lookup.IsPro,
			API:           &lookup.API,
			EffectiveSpec: m.normalizeOverride(lookup.Key.Override),
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), cc)))
	})
}

// normalizeOverride turns the key's optional override into a concrete spec,
// defaulting when the override is absent or unusable.
func (m *AuthMiddleware) normalizeOverride(override *models.RateLimitSpec) models.RateLimitSpec {
	if override != nil && override.Usable() {
		return *override
	}
	return m.defaultSpec
}

func (m *AuthMiddleware) touchLastUsed(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), lastUsedWriteTimeout)
	defer cancel()

	if err := m.keys.TouchLastUsed(ctx, id); err != nil {
		log.Warn().Err(err).Str("key_id", id.String()).Msg("couldn't record key usage")
	}
}
