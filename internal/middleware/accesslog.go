package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/apexhub/gateway/internal/metrics"
)

// AccessLogMiddleware records one structured line and one metrics sample per
// request, including requests the pipeline rejects.
type AccessLogMiddleware struct {
	collector         *metrics.Collector
	trustProxyHeaders bool
}

func NewAccessLogMiddleware(collector *metrics.Collector, trustProxyHeaders bool) *AccessLogMiddleware {
	return &AccessLogMiddleware{collector: collector, trustProxyHeaders: trustProxyHeaders}
}

// statusRecorder captures the status code written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (m *AccessLogMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		durationMs := time.Since(start).Milliseconds()
		m.collector.RecordRequest(durationMs, rec.status)

		var evt *zerolog.Event
		switch {
		case rec.status >= 500:
			evt = log.Error()
		case rec.status >= 400:
			evt = log.Warn()
		default:
			evt = log.Info()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Int64("duration_ms", durationMs).
			Str("ip", clientIP(r, m.trustProxyHeaders)).
			Msg("request")
	})
}
