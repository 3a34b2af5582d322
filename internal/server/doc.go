// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a local ADK-compatible HTTP backend.
//
// It keeps sessions in memory and answers with a pluggable Responder, so the
// chat client can be developed and demonstrated without a real agent. Fault
// injection exercises the client's retry and rate-limit handling.
//
// # Endpoints
//
//   - GET  /apps/{app}/users/{user}/sessions/{session} - Fetch a session
//   - POST /apps/{app}/users/{user}/sessions/{session} - Create a session
//   - POST /run                                        - Run, reply as a JSON event array
//   - POST /run_sse                                    - Run, reply as SSE "data:" frames
//   - GET  /list-apps                                  - Known app names
//   - GET  /health                                     - Health check
//   - GET  /stats                                      - Served counts
//   - GET  /metrics                                    - Prometheus exposition (WithMetrics)
//
// Errors use the {"detail": "..."} body ADK servers send.
//
// # Key Types
//
//   - Server: chi router, in-memory sessions and lifecycle
//   - Responder: produces reply chunks for a run request
//   - Faults: injected 429 and 5xx answers for run calls
//
// # Usage
//
//	srv := server.NewServer("127.0.0.1:8000").
//		WithApps("weather_agent").
//		WithFaults(server.Faults{FailRuns: 2})
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
