// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package adk is the HTTP client for an ADK API server.
//
// It covers session management, one-shot and streaming agent runs, app
// discovery and health checks. Every request carries an X-Request-ID header
// and is bounded by a per-attempt timeout. Server errors (5xx) and network
// failures are retried with exponential backoff; 429 responses honor
// Retry-After. All outstanding requests can be aborted with CancelAll.
//
// # Key Types
//
//   - Client: The transport, configured with With* builder methods
//   - Event: One agent event with its displayable text
//   - APIError, TimeoutError, NetworkError, ValidationError: Error kinds
//   - SendLimiter: Client-side send throttle
//
// # Usage
//
//	client, err := adk.NewClient("http://localhost:8000")
//	if err != nil {
//	    return err
//	}
//	client.WithLogger(logger).WithMetrics(metrics)
//
//	err = client.SendMessageStreaming(ctx, cfg, "hello", func(ev adk.Event) {
//	    fmt.Print(ev.Text())
//	}, nil)
package adk
