// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics for the ADK chat client.
//
// Metrics cover the transport (requests, latency, retries, in-flight
// requests), the stream decoder (events and malformed payloads), the
// orchestrator (sends by mode and outcome), and the development backend
// (served requests).
//
// # Key Types
//
//   - Metrics: Collector set registered on a private registry
//
// # Usage
//
//	m := telemetry.New()
//	client := adk.NewClient(url).WithMetrics(m)
//	http.Handle("/metrics", m.Handler())
//
// Every method is safe to call on a nil *Metrics, so callers never need to
// check whether metrics are enabled.
//
// # Privacy
//
// Metrics are only exposed when explicitly enabled and never include
// message content or identifiers.
package telemetry
