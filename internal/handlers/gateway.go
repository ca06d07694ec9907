package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/apexhub/gateway/internal/httpx"
	"github.com/apexhub/gateway/internal/metrics"
	"github.com/apexhub/gateway/internal/middleware"
	"github.com/apexhub/gateway/internal/models"
	"github.com/apexhub/gateway/internal/proxy"
)

// CatalogStore is the slice of the catalog the router needs.
type CatalogStore interface {
	APIBySlug(ctx context.Context, slug, visibility string) (*models.APIDefinition, error)
}

// GatewayHandler resolves the target API from the path and relays the
// request. It only ever sees requests the pipeline already admitted.
type GatewayHandler struct {
	catalog   CatalogStore
	scope     string
	proxy     *proxy.Service
	collector *metrics.Collector
}

func NewGatewayHandler(catalog CatalogStore, scope string, proxySvc *proxy.Service, collector *metrics.Collector) *GatewayHandler {
	return &GatewayHandler{
		catalog:   catalog,
		scope:     scope,
		proxy:     proxySvc,
		collector: collector,
	}
}

func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slug, subpath := splitPath(r.URL.Path)
	if slug == "" {
		h.writeNotFound(w)
		return
	}

	api, err := h.catalog.APIBySlug(r.Context(), slug, h.scope)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("catalog lookup failed")
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "internal server error")
		return
	}
	// Missing and wrong-scope slugs answer identically so this instance's
	// scope boundary is not probeable.
	if api == nil || api.Visibility != h.scope {
		h.writeNotFound(w)
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	if caller == nil || caller.API == nil {
		log.Error().Str("slug", slug).Msg("admitted request reached router without caller context")
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "internal server error")
		return
	}
	if caller.API.Slug != api.Slug {
		httpx.WriteError(w, http.StatusForbidden, httpx.KindForbidden,
			"API key is not authorized for this API")
		return
	}

	status, err := h.proxy.Relay(w, r, api.BaseURL, subpath)
	if err != nil {
		if status != 0 {
			// Response already streaming; nothing more can be written.
			log.Warn().Err(err).Str("slug", slug).Int("status", status).Msg("upstream relay interrupted")
			return
		}

		h.collector.RecordUpstreamFailure()
		if r.Context().Err() != nil {
			log.Debug().Str("slug", slug).Msg("client disconnected before upstream responded")
			return
		}

		log.Error().Err(err).Str("slug", slug).Str("base_url", api.BaseURL).Msg("upstream call failed")
		if errors.Is(err, proxy.ErrUpstreamTimeout) {
			httpx.WriteError(w, http.StatusGatewayTimeout, httpx.KindUpstreamTimeout, "upstream request timed out")
			return
		}
		httpx.WriteError(w, http.StatusBadGateway, httpx.KindBadGateway, "bad gateway")
	}
}

func (h *GatewayHandler) writeNotFound(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, "not found")
}

// splitPath separates the target slug from the remaining upstream path.
func splitPath(path string) (slug, subpath string) {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.Index(trimmed, "/"); idx != -1 {
		return trimmed[:idx], trimmed[idx:]
	}
	return trimmed, ""
}
