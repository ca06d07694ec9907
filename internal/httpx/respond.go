// Package httpx writes the gateway's uniform JSON response envelopes.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Error kinds used in the {"error": kind, "message": text} envelope.
const (
	KindBadRequest      = "bad_request"
	KindPayloadTooLarge = "payload_too_large"
	KindUnauthorized    = "unauthorized"
	KindForbidden       = "forbidden"
	KindNotFound        = "not_found"
	KindRateLimited     = "rate_limited"
	KindInternal        = "internal"
	KindBadGateway      = "bad_gateway"
	KindUpstreamTimeout = "upstream_timeout"
)

// ErrorBody is the envelope every pipeline stage returns on rejection.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response body")
	}
}

// WriteError writes the uniform error envelope.
func WriteError(w http.ResponseWriter, status int, kind, message string) {
	WriteJSON(w, status, ErrorBody{Error: kind, Message: message})
}
