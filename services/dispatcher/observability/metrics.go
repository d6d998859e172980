// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the dispatcher.
//
// # Description
//
// Metrics cover request outcomes by route, escalations to the fallback
// strategy, and streaming behavior (time to first fragment, stream
// duration, client disconnects). Exposed on /metrics for Prometheus
// scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "shopassist"

const chatSubsystem = "chat"

// ChatMetrics holds all Prometheus metrics for chat dispatch.
//
// # Fields
//
//   - RequestsTotal: Counter of chat requests by route and status
//   - EscalationsTotal: Counter of fallback escalations by origin route
//   - RequestDurationSeconds: Histogram of end-to-end request latency
//   - TimeToFirstFragmentSeconds: Histogram of streaming first-fragment latency
//   - ActiveStreams: Gauge of currently open streaming connections
//   - StreamDurationSeconds: Histogram of total stream duration
//   - KeepAlivesTotal: Counter of keepalive pings sent
//   - ClientDisconnectsTotal: Counter of mid-stream client disconnects
type ChatMetrics struct {
	RequestsTotal              *prometheus.CounterVec
	EscalationsTotal           *prometheus.CounterVec
	RequestDurationSeconds     *prometheus.HistogramVec
	TimeToFirstFragmentSeconds prometheus.Histogram
	ActiveStreams              prometheus.Gauge
	StreamDurationSeconds      *prometheus.HistogramVec
	KeepAlivesTotal            prometheus.Counter
	ClientDisconnectsTotal     prometheus.Counter
}

// DefaultMetrics is the singleton instance. Nil until InitMetrics runs, so
// callers guard with a nil check and tests can run without a registry.
var DefaultMetrics *ChatMetrics

// InitMetrics creates and registers all metrics on the default registry.
// Call once at startup; a second call panics on duplicate registration.
func InitMetrics() *ChatMetrics {
	DefaultMetrics = &ChatMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total chat requests by route and status",
			},
			[]string{"route", "status"},
		),

		EscalationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "escalations_total",
				Help:      "Queries escalated to the fallback strategy, by origin route",
			},
			[]string{"origin_route"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end chat request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		TimeToFirstFragmentSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "time_to_first_fragment_seconds",
				Help:      "Latency until the first streamed fragment",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_streams",
				Help:      "Currently open streaming connections",
			},
		),

		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total streaming connection duration",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		KeepAlivesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "keepalives_total",
				Help:      "Keepalive pings sent on streaming connections",
			},
		),

		ClientDisconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Client disconnects observed mid-stream",
			},
		),
	}
	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records one completed request.
func (m *ChatMetrics) RecordRequest(route, status string, seconds float64) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
	m.RequestDurationSeconds.WithLabelValues(route).Observe(seconds)
}

// RecordEscalation records an escalation to the fallback strategy.
// originRoute is "" when routing itself found no match.
func (m *ChatMetrics) RecordEscalation(originRoute string) {
	if originRoute == "" {
		originRoute = "unknown"
	}
	m.EscalationsTotal.WithLabelValues(originRoute).Inc()
}

// StreamStarted increments the active stream gauge.
func (m *ChatMetrics) StreamStarted() {
	m.ActiveStreams.Inc()
}

// StreamEnded decrements the active stream gauge.
func (m *ChatMetrics) StreamEnded() {
	m.ActiveStreams.Dec()
}

// RecordTimeToFirstFragment records streaming first-fragment latency.
func (m *ChatMetrics) RecordTimeToFirstFragment(seconds float64) {
	m.TimeToFirstFragmentSeconds.Observe(seconds)
}

// RecordStreamDuration records total stream duration.
func (m *ChatMetrics) RecordStreamDuration(seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordKeepAlive counts one keepalive ping.
func (m *ChatMetrics) RecordKeepAlive() {
	m.KeepAlivesTotal.Inc()
}

// RecordClientDisconnect counts one mid-stream client disconnect.
func (m *ChatMetrics) RecordClientDisconnect() {
	m.ClientDisconnectsTotal.Inc()
}
