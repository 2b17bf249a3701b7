// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the shield
// service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring URL scan
// operations. Metrics include:
//   - Scan counters (by tier and verdict)
//   - Escalation counters (by origin and destination tier)
//   - Scan cache hit/miss counters
//   - Scan latency histograms (by tier)
//   - Answer-provider fallback counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for scan pipeline metrics
const shieldSubsystem = "shield"

// ScanMetrics holds all Prometheus metrics for scan pipeline operations.
//
// # Description
//
// Provides counters and histograms for monitoring scan routing, escalation,
// caching, and answer generation. Initialize once at startup via
// InitMetrics().
//
// # Fields
//
//   - ScansTotal: Counter of completed scans by tier and verdict
//   - EscalationsTotal: Counter of tier escalations by origin and destination
//   - CacheEventsTotal: Counter of scan cache hits and misses
//   - ScanDurationSeconds: Histogram of end-to-end scan latency by tier
//   - DegradedScansTotal: Counter of scans answered from a fallback result
//   - ProviderFallbacksTotal: Counter of answer-provider fallbacks
//   - SessionLoginsTotal: Counter of session establishments by outcome
//
// # Thread Safety
//
// All operations are thread-safe.
type ScanMetrics struct {
	// ScansTotal counts completed scans.
	// Labels: tier (edge, hybrid, deep), verdict (SAFE, SUSPICIOUS,
	// DANGEROUS, UNKNOWN)
	ScansTotal *prometheus.CounterVec

	// EscalationsTotal counts tier escalations.
	// Labels: from (edge), to (hybrid, deep)
	EscalationsTotal *prometheus.CounterVec

	// CacheEventsTotal counts scan cache lookups.
	// Labels: event (hit, miss)
	CacheEventsTotal *prometheus.CounterVec

	// ScanDurationSeconds measures end-to-end assess latency.
	// Labels: tier
	ScanDurationSeconds *prometheus.HistogramVec

	// DegradedScansTotal counts scans served from a lower tier after the
	// decided tier failed.
	// Labels: decided_tier
	DegradedScansTotal *prometheus.CounterVec

	// ProviderFallbacksTotal counts answer generation falling past a
	// provider.
	// Labels: provider
	ProviderFallbacksTotal *prometheus.CounterVec

	// SessionLoginsTotal counts login attempts against the auth backend.
	// Labels: status (success, error)
	SessionLoginsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of ScanMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ScanMetrics

// InitMetrics initializes the default metrics instance against the global
// Prometheus registry. Call once at application startup; a second call
// panics on duplicate registration.
func InitMetrics() *ScanMetrics {
	DefaultMetrics = NewScanMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewScanMetrics creates and registers a ScanMetrics instance against the
// given registerer. Tests pass a fresh prometheus.NewRegistry() to stay
// isolated from the global registry.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	factory := promauto.With(reg)

	return &ScanMetrics{
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: shieldSubsystem,
				Name:      "scans_total",
				Help:      "Total completed scans by tier and verdict",
			},
			[]string{"tier", "verdict"},
		),

		EscalationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: shieldSubsystem,
				Name:      "escalations_total",
				Help:      "Total tier escalations by origin and destination",
			},
			[]string{"from", "to"},
		),

		CacheEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: shieldSubsystem,
				Name:      "cache_events_total",
				Help:      "Scan cache lookups by event",
			},
			[]string{"event"},
		),

		ScanDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: shieldSubsystem,
				Name:      "scan_duration_seconds",
				Help:      "End-to-end scan latency in seconds by tier",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0, 180.0},
			},
			[]string{"tier"},
		),

		DegradedScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: shieldSubsystem,
				Name:      "degraded_scans_total",
				Help:      "Scans served from a fallback result after the decided tier failed",
			},
			[]string{"decided_tier"},
		),

		ProviderFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: shieldSubsystem,
				Name:      "provider_fallbacks_total",
				Help:      "Answer generation fallbacks past a provider",
			},
			[]string{"provider"},
		),

		SessionLoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: shieldSubsystem,
				Name:      "session_logins_total",
				Help:      "Login attempts against the auth backend by status",
			},
			[]string{"status"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordScan records a completed scan with its serving tier and verdict.
func (m *ScanMetrics) RecordScan(tier datatypes.ScanTier, verdict datatypes.Verdict, seconds float64) {
	m.ScansTotal.WithLabelValues(string(tier), string(verdict)).Inc()
	m.ScanDurationSeconds.WithLabelValues(string(tier)).Observe(seconds)
}

// RecordEscalation records a routing decision that left the edge tier.
func (m *ScanMetrics) RecordEscalation(from, to datatypes.ScanTier) {
	m.EscalationsTotal.WithLabelValues(string(from), string(to)).Inc()
}

// RecordCacheHit records a scan answered from cache.
func (m *ScanMetrics) RecordCacheHit() {
	m.CacheEventsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a scan that had to run the pipeline.
func (m *ScanMetrics) RecordCacheMiss() {
	m.CacheEventsTotal.WithLabelValues("miss").Inc()
}

// RecordDegraded records a scan answered from a lower tier because the
// decided tier failed.
func (m *ScanMetrics) RecordDegraded(decided datatypes.ScanTier) {
	m.DegradedScansTotal.WithLabelValues(string(decided)).Inc()
}

// RecordProviderFallback records answer generation skipping past a failed
// provider.
func (m *ScanMetrics) RecordProviderFallback(provider string) {
	m.ProviderFallbacksTotal.WithLabelValues(provider).Inc()
}

// RecordLogin records a login attempt outcome.
func (m *ScanMetrics) RecordLogin(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.SessionLoginsTotal.WithLabelValues(status).Inc()
}
