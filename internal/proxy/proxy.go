// Package proxy forwards admitted requests to their target API's upstream.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Classified upstream failures. Anything else wrapping these never reaches
// the caller verbatim.
var (
	ErrUpstreamTimeout     = errors.New("upstream timed out")
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// Headers that must not be forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Response headers that would leak upstream topology.
var topologyHeaders = []string{
	"Server",
	"X-Powered-By",
}

// Service relays requests upstream with a hard per-call timeout.
type Service struct {
	client           *http.Client
	timeout          time.Duration
	credentialHeader string
}

// NewService creates a proxy. credentialHeader is stripped from every
// forwarded request so upstreams never see gateway credentials.
func NewService(timeout time.Duration, credentialHeader string) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		client:           &http.Client{},
		timeout:          timeout,
		credentialHeader: credentialHeader,
	}
}

// Relay forwards r to baseURL+subpath and streams the upstream response to w.
// The upstream call inherits the request's context, so a disconnecting client
// cancels it. Returns the upstream status once response headers have been
// written; a zero status means nothing was written and err classifies the
// failure (ErrUpstreamTimeout or ErrUpstreamUnreachable).
func (p *Service) Relay(w http.ResponseWriter, r *http.Request, baseURL, subpath string) (int, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return 0, fmt.Errorf("%w: bad base URL: %v", ErrUpstreamUnreachable, err)
	}
	if subpath != "" {
		target.Path = strings.TrimSuffix(target.Path, "/") + "/" + strings.TrimPrefix(subpath, "/")
	}
	target.RawQuery = r.URL.RawQuery

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	upstreamReq.ContentLength = r.ContentLength

	for key, values := range r.Header {
		if p.skipRequestHeader(key) {
			continue
		}
		for _, value := range values {
			upstreamReq.Header.Add(key, value)
		}
	}
	upstreamReq.Host = target.Host

	resp, err := p.client.Do(upstreamReq)
	if err != nil {
		return 0, classify(ctx, err)
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if p.skipResponseHeader(key) {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Headers are already out; the caller can only log this.
		return resp.StatusCode, fmt.Errorf("copying upstream response: %w", err)
	}

	return resp.StatusCode, nil
}

func (p *Service) skipRequestHeader(key string) bool {
	if http.CanonicalHeaderKey(key) == http.CanonicalHeaderKey(p.credentialHeader) {
		return true
	}
	return isHopHeader(key)
}

func (p *Service) skipResponseHeader(key string) bool {
	canonical := http.CanonicalHeaderKey(key)
	for _, h := range topologyHeaders {
		if canonical == http.CanonicalHeaderKey(h) {
			return true
		}
	}
	return isHopHeader(key)
}

func isHopHeader(key string) bool {
	canonical := http.CanonicalHeaderKey(key)
	for _, h := range hopHeaders {
		if canonical == http.CanonicalHeaderKey(h) {
			return true
		}
	}
	return false
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || os.IsTimeout(err) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
}
