package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBody(t *testing.T, m *BodyMiddleware, contentType, body string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var forwarded string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		forwarded = string(raw)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/weather", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, req)
	return rec, forwarded
}

func TestBodyMiddleware(t *testing.T) {
	m := NewBodyMiddleware(1 << 20)

	t.Run("repairs raw newline inside a string value", func(t *testing.T) {
		rec, forwarded := runBody(t, m, "application/json", "{\"note\":\"a\nb\"}")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"note":"a\nb"}`, forwarded)
	})

	t.Run("valid JSON passes through byte-identical", func(t *testing.T) {
		body := `{"a":1,"b":"two"}`
		rec, forwarded := runBody(t, m, "application/json", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, body, forwarded)
	})

	t.Run("malformed JSON is a bad request with the parser message", func(t *testing.T) {
		rec, _ := runBody(t, m, "application/json", `{"a":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "bad_request", body.Error)
		assert.Contains(t, body.Message, "malformed JSON")
	})

	t.Run("empty body skips sanitization", func(t *testing.T) {
		rec, forwarded := runBody(t, m, "application/json", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, forwarded)
	})

	t.Run("non-JSON content type is a no-op", func(t *testing.T) {
		body := "not json at all\x01"
		rec, forwarded := runBody(t, m, "text/plain", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, body, forwarded)
	})

	t.Run("json suffix content types are sanitized", func(t *testing.T) {
		rec, forwarded := runBody(t, m, "application/vnd.acme+json; charset=utf-8", "{\"v\":\"a\tb\"}")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"v":"a\tb"}`, forwarded)
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		small := NewBodyMiddleware(16)
		rec, _ := runBody(t, small, "application/json", `{"padding":"`+strings.Repeat("x", 64)+`"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "payload_too_large", decodeError(t, rec).Error)
	})
}
