// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics builds a ChatMetrics instance on an isolated registry so
// tests never collide with the global one.
func newTestMetrics(t *testing.T) *ChatMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	m := &ChatMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total chat requests by route and status",
			},
			[]string{"route", "status"},
		),
		EscalationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "escalations_total",
				Help:      "Queries escalated to the fallback strategy, by origin route",
			},
			[]string{"origin_route"},
		),
		RequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end chat request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		TimeToFirstFragmentSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "time_to_first_fragment_seconds",
				Help:      "Latency until the first streamed fragment",
			},
		),
		ActiveStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_streams",
				Help:      "Currently open streaming connections",
			},
		),
		StreamDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total streaming connection duration",
			},
			[]string{"status"},
		),
		KeepAlivesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "keepalives_total",
				Help:      "Keepalive pings sent on streaming connections",
			},
		),
		ClientDisconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Client disconnects observed mid-stream",
			},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.EscalationsTotal,
		m.RequestDurationSeconds,
		m.TimeToFirstFragmentSeconds,
		m.ActiveStreams,
		m.StreamDurationSeconds,
		m.KeepAlivesTotal,
		m.ClientDisconnectsTotal,
	)
	return m
}

func TestRecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest("faq", "ok", 0.42)
	m.RecordRequest("faq", "ok", 0.13)
	m.RecordRequest("sql", "error", 1.2)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("faq", "ok")); got != 2 {
		t.Errorf("faq ok requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("sql", "error")); got != 1 {
		t.Errorf("sql error requests = %v, want 1", got)
	}
}

func TestRecordEscalationDefaultsOrigin(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEscalation("")
	m.RecordEscalation("sql")

	if got := testutil.ToFloat64(m.EscalationsTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown-origin escalations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EscalationsTotal.WithLabelValues("sql")); got != 1 {
		t.Errorf("sql-origin escalations = %v, want 1", got)
	}
}

func TestStreamGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.StreamStarted()
	m.StreamStarted()
	m.StreamEnded()

	if got := testutil.ToFloat64(m.ActiveStreams); got != 1 {
		t.Errorf("active streams = %v, want 1", got)
	}
}

func TestStreamCounters(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordKeepAlive()
	m.RecordKeepAlive()
	m.RecordClientDisconnect()

	if got := testutil.ToFloat64(m.KeepAlivesTotal); got != 2 {
		t.Errorf("keepalives = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ClientDisconnectsTotal); got != 1 {
		t.Errorf("disconnects = %v, want 1", got)
	}
}
