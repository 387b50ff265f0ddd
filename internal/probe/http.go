// Package probe implements the network checks used by the monitor engine.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultUserAgent = "UptimeNinjaBot/1.0 (+https://t.me/)"

// HTTPProber issues a GET and reports the response status. It does not follow
// classification rules; the caller decides what counts as up.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

func NewHTTPProber(userAgent string) *HTTPProber {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = 2
	tr.IdleConnTimeout = 90 * time.Second
	return &HTTPProber{
		client:    &http.Client{Transport: tr},
		userAgent: userAgent,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	// Drain a little so keep-alive connections can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}
