// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics for the ADK chat client.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adkchat"

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds every collector the client exports.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	inflight        prometheus.Gauge
	cancelled       prometheus.Counter

	streamEvents prometheus.Counter
	parseErrors  prometheus.Counter

	sends *prometheus.CounterVec

	served *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Backend request attempts by operation and result code.",
		}, []string{"op", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Latency of backend request attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Retries scheduled by operation and reason.",
		}, []string{"op", "reason"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "inflight_requests",
			Help:      "Requests currently in flight.",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "cancelled_total",
			Help:      "Requests aborted by a bulk cancel.",
		}),
		streamEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Well-formed events decoded from SSE streams.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "parse_errors_total",
			Help:      "Malformed SSE payloads skipped.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "sends_total",
			Help:      "Messages sent by response mode and outcome.",
		}, []string{"mode", "outcome"}),
		served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mockserver",
			Name:      "requests_total",
			Help:      "Requests served by the development backend.",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.retries,
		m.inflight,
		m.cancelled,
		m.streamEvents,
		m.parseErrors,
		m.sends,
		m.served,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// TRANSPORT
// =============================================================================

// ObserveRequest records one request attempt. A status of 0 means the
// attempt never got a response.
func (m *Metrics) ObserveRequest(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(op, code).Inc()
	m.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveRetry records a scheduled retry.
func (m *Metrics) ObserveRetry(op, reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op, reason).Inc()
}

// InflightAdd adjusts the in-flight gauge by delta.
func (m *Metrics) InflightAdd(delta float64) {
	if m == nil {
		return
	}
	m.inflight.Add(delta)
}

// ObserveCancelled records n requests aborted by a bulk cancel.
func (m *Metrics) ObserveCancelled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cancelled.Add(float64(n))
}

// =============================================================================
// STREAM
// =============================================================================

// IncStreamEvents counts a decoded event.
func (m *Metrics) IncStreamEvents() {
	if m == nil {
		return
	}
	m.streamEvents.Inc()
}

// IncParseErrors counts a skipped payload.
func (m *Metrics) IncParseErrors() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

// =============================================================================
// CHAT
// =============================================================================

// ObserveSend records a finished send. Outcome is "ok", "empty" or "error".
func (m *Metrics) ObserveSend(mode, outcome string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(mode, outcome).Inc()
}

// =============================================================================
// MOCK SERVER
// =============================================================================

// ObserveServed records a request handled by the development backend.
func (m *Metrics) ObserveServed(route string, status int) {
	if m == nil {
		return
	}
	m.served.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
