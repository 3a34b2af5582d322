// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package adk

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultSendLimit is how many messages may be sent per window.
	DefaultSendLimit = 10

	// DefaultSendWindow is the rate-limit window.
	DefaultSendWindow = time.Minute
)

// SendLimiter throttles outgoing chat messages on the client side so a stuck
// key or script cannot flood the agent.
type SendLimiter struct {
	limiter *rate.Limiter
	limit   int
	window  time.Duration
}

// NewSendLimiter allows limit sends per window, refilling evenly. A
// non-positive limit disables limiting.
func NewSendLimiter(limit int, window time.Duration) *SendLimiter {
	if limit <= 0 || window <= 0 {
		return &SendLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &SendLimiter{
		limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		limit:   limit,
		window:  window,
	}
}

// Allow reports whether a send may happen now, consuming a token if so.
// A nil limiter always allows.
func (l *SendLimiter) Allow() error {
	if l == nil || l.limiter.Allow() {
		return nil
	}
	return fmt.Errorf("%w: at most %d messages per %s", ErrRateLimited, l.limit, l.window)
}
