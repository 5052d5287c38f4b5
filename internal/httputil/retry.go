// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const defaultMaxAttempts = 3

// Retryable reports whether an HTTP status warrants another attempt:
// 429 (Too Many Requests) and every 5xx.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request, retrying on HTTP 429, any 5xx, and
// transport errors with exponential backoff. The delay starts at
// RetryBaseDelay and doubles each attempt: 1 s, 2 s, 4 s, ...
//
// maxAttempts counts the first request; when it is 0 the default (3) is used.
// Before each retry the previous response body is drained and closed. If the
// context is cancelled the function returns ctx.Err(). After exhausting
// attempts it returns the last retryable response so the caller can inspect
// it, or the last transport error.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int, logger *slog.Logger) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	for attempt := 0; ; attempt++ {
		last := attempt == maxAttempts-1

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if last {
				return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, err)
			}
			logger.Warn("request failed, retrying",
				"url", req.URL.Redacted(), "attempt", attempt+1, "max_attempts", maxAttempts, "error", err)
		} else {
			if !Retryable(resp.StatusCode) || last {
				return resp, nil
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			logger.Warn("retryable HTTP status, retrying",
				"url", req.URL.Redacted(), "status", resp.StatusCode, "attempt", attempt+1, "max_attempts", maxAttempts)
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
