package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apexhub/gateway/internal/httpx"
	"github.com/apexhub/gateway/internal/sanitize"
)

// BodyMiddleware caps request body size and, for JSON payloads, repairs raw
// control characters before anything downstream parses or forwards the body.
type BodyMiddleware struct {
	maxBytes int64
}

func NewBodyMiddleware(maxBytes int64) *BodyMiddleware {
	return &BodyMiddleware{maxBytes: maxBytes}
}

func (m *BodyMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, m.maxBytes)
		}

		if !isJSON(r.Header.Get("Content-Type")) || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Drain the full body before deciding anything about it.
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpx.WriteError(w, http.StatusRequestEntityTooLarge, httpx.KindPayloadTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", m.maxBytes))
				return
			}
			httpx.WriteError(w, http.StatusBadRequest, httpx.KindBadRequest, "couldn't read request body")
			return
		}

		if len(raw) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		cleaned := sanitize.EscapeControlChars(raw)

		// Parse-check the repaired payload. The parser's message is safe to
		// surface; the uploaded bytes are not.
		var parsed any
		if err := json.Unmarshal(cleaned, &parsed); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, httpx.KindBadRequest,
				fmt.Sprintf("malformed JSON: %s", err.Error()))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(cleaned))
		r.ContentLength = int64(len(cleaned))
		r.Header.Set("Content-Length", fmt.Sprintf("%d", len(cleaned)))

		next.ServeHTTP(w, r)
	})
}

func isJSON(contentType string) bool {
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
