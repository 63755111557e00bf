// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ClientConfig configures a paced HTTP client.
type ClientConfig struct {
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration

	// RequestsPerSecond is the sustained request rate (default 2).
	RequestsPerSecond float64

	// Burst is the token bucket burst size (default 1).
	Burst int

	// MaxAttempts is the total tries per request (default 3).
	MaxAttempts int

	// UserAgent is set on requests that do not carry one.
	UserAgent string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// Client wraps http.Client with request pacing and retry. It is safe for
// concurrent use; the underlying rate.Limiter serializes token grants.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	userAgent   string
}

// NewClient builds a Client from cfg, applying defaults for zero values.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst == 0 {
		cfg.Burst = 1
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxAttempts: cfg.MaxAttempts,
		userAgent:   cfg.UserAgent,
	}
}

// Do waits for the rate limiter, then executes the request through
// DoWithRetry. Retried attempts are spaced by the backoff schedule rather
// than consuming additional limiter tokens.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}
	return DoWithRetry(ctx, c.http, req, c.maxAttempts)
}
