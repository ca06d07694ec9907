package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/apexhub/gateway/internal/models"
)

type contextKey string

const callerContextKey contextKey = "caller_context"

// WithCaller attaches the authenticated caller to the request context.
func WithCaller(ctx context.Context, cc *models.CallerContext) context.Context {
	return context.WithValue(ctx, callerContextKey, cc)
}

// CallerFromContext returns the caller attached by the authenticator, or nil.
func CallerFromContext(ctx context.Context) *models.CallerContext {
	if cc, ok := ctx.Value(callerContextKey).(*models.CallerContext); ok {
		return cc
	}
	return nil
}

// clientIP extracts the caller's address. Forwarding headers are only
// honored when the deployment declares its fronting proxy trusted; taken
// from an untrusted peer they would let a caller mint a fresh IP-keyed
// quota per request just by rotating the header.
func clientIP(r *http.Request, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			return strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return realIP
		}
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
