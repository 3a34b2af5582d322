// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package adk

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// RETRY POLICY
// =============================================================================

// retryPolicy decides whether and when a failed attempt is repeated.
//
// maxRetries counts retries after the first attempt, so a request is sent at
// most maxRetries+1 times.
type retryPolicy struct {
	maxRetries        int
	baseDelay         time.Duration
	maxDelay          time.Duration
	rateLimitFallback time.Duration

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries:        DefaultMaxRetries,
		baseDelay:         DefaultRetryBaseDelay,
		maxDelay:          DefaultRetryMaxDelay,
		rateLimitFallback: DefaultRateLimitFallback,
		sleep:             sleepContext,
	}
}

// backoff returns the delay before retry number attempt+1: base, 2*base,
// 4*base and so on, never more than maxDelay.
func (p retryPolicy) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Shifting past 30 overflows long before it matters.
	if attempt > 30 {
		return p.maxDelay
	}
	d := p.baseDelay << attempt
	if d <= 0 || d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// next reports whether err deserves another attempt after attempt (0-based)
// failed, and if so how long to wait and a short reason label for metrics.
func (p retryPolicy) next(err error, attempt int) (time.Duration, string, bool) {
	if attempt >= p.maxRetries {
		return 0, "", false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case !apiErr.Temporary():
			return 0, "", false
		case apiErr.Status == http.StatusTooManyRequests:
			if apiErr.hasRetryAfter {
				return apiErr.RetryAfter, "429", true
			}
			return p.rateLimitFallback, "429", true
		}
		return p.backoff(attempt), "5xx", true
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return p.backoff(attempt), "network", true
	}
	return 0, "", false
}

// parseRetryAfter accepts either delay-seconds or an HTTP-date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
