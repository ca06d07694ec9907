package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/apexhub/gateway/internal/httpx"
	"github.com/apexhub/gateway/internal/metrics"
)

const probeTimeout = 5 * time.Second

// DependencyPinger is anything health checks can probe.
type DependencyPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the unauthenticated /health and /metrics endpoints.
type HealthHandler struct {
	db        DependencyPinger
	redis     *redis.Client // nil when counters are process-local
	scope     string
	collector *metrics.Collector
}

func NewHealthHandler(db DependencyPinger, redisClient *redis.Client, scope string, collector *metrics.Collector) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redisClient,
		scope:     scope,
		collector: collector,
	}
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status        string            `json:"status"`
	Scope         string            `json:"scope"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Timestamp     string            `json:"timestamp"`
	Services      map[string]string `json:"services"`
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, httpx.KindBadRequest, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	health := &HealthResponse{
		Status:        "healthy",
		Scope:         h.scope,
		UptimeSeconds: int64(h.collector.Uptime().Seconds()),
		Timestamp:     time.Now().Format(time.RFC3339),
		Services:      make(map[string]string),
	}

	if err := h.db.Ping(ctx); err != nil {
		health.Services["postgresql"] = "unhealthy: " + err.Error()
		health.Status = "degraded"
		log.Warn().Err(err).Msg("postgres health check failed")
	} else {
		health.Services["postgresql"] = "healthy"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			health.Services["redis"] = "unhealthy: " + err.Error()
			health.Status = "degraded"
			log.Warn().Err(err).Msg("redis health check failed")
		} else {
			health.Services["redis"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, statusCode, health)
}

func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, httpx.KindBadRequest, "method not allowed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.collector.GetSnapshot())
}
