// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the source adapters.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = time.Second

const defaultMaxAttempts = 3

// DoWithRetry executes an HTTP request and retries transport errors,
// HTTP 429 and 5xx responses with exponential backoff. The delay starts
// at RetryBaseDelay and doubles each attempt; a Retry-After header on a
// retryable response overrides the computed delay.
//
// maxAttempts is the total number of tries; when it is 0 or negative the
// default (3) is used. Before each retry the response body is drained and
// closed. If the context is cancelled during a backoff wait the function
// returns ctx.Err(). After exhausting attempts the last response is
// returned when one exists so the caller can inspect the status, and the
// last transport error otherwise.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	for attempt := 1; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// Exhausted attempts: hand back whatever happened last.
		if attempt >= maxAttempts {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * RetryBaseDelay
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		} else {
			if d, ok := retryAfter(resp); ok {
				backoff = d
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryableStatus reports whether the status code warrants another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryAfter parses the Retry-After header, which carries either a delay
// in seconds or an HTTP date.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}
