// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the shield service.
//
// This file contains the scan verdict model shared by the tier clients,
// the router, and the orchestrator. A ScanResult is immutable once a
// tier client has produced it; downstream code copies rather than mutates.
package datatypes

import "time"

// Verdict classifies a URL after assessment.
type Verdict string

const (
	VerdictSafe       Verdict = "SAFE"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictDangerous  Verdict = "DANGEROUS"
	VerdictUnknown    Verdict = "UNKNOWN"
)

// ScanTier identifies which scanning capability produced a result.
type ScanTier string

const (
	// TierEdge is on-device inference. Fastest, lowest accuracy floor.
	TierEdge ScanTier = "edge"

	// TierHybrid is edge inference enriched with threat intelligence.
	TierHybrid ScanTier = "hybrid"

	// TierDeep is the full remote scanning pipeline. Slowest, most accurate.
	TierDeep ScanTier = "deep"
)

// Severity grades an indicator.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Indicator is a single structured finding attached to a ScanResult.
// Indicators are emitted directly by tier clients; nothing downstream
// parses free-text reasoning to reconstruct them.
type Indicator struct {
	Type        string   `json:"type"`
	Value       string   `json:"value"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// ScanResult is the outcome of assessing one URL at one tier.
//
// The ScanTier field truthfully names the tier client that produced the
// result. The orchestrator never relabels a result with a tier it did
// not invoke.
type ScanResult struct {
	URL        string      `json:"url"`
	Verdict    Verdict     `json:"verdict"`
	RiskLevel  string      `json:"risk_level"` // A (clean) through F (worst)
	RiskScore  float64     `json:"risk_score"` // 0..1
	Confidence float64     `json:"confidence"` // 0..1
	Indicators []Indicator `json:"indicators,omitempty"`
	Reasoning  []string    `json:"reasoning,omitempty"`
	ScanTier   ScanTier    `json:"scan_tier"`
	LatencyMs  int64       `json:"latency_ms"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Prediction is the raw output of the edge model, before routing.
type Prediction struct {
	// Confidence is how sure the model is of its own verdict (0..1).
	Confidence float64 `json:"confidence"`

	// Probability is the phishing probability itself (0..1).
	Probability float64 `json:"probability"`
}

// RoutingDecision is the router's verdict on where a scan should go next.
// Ephemeral: recomputed per prediction, never persisted.
type RoutingDecision struct {
	Tier             ScanTier `json:"tier"`
	ShouldCache      bool     `json:"should_cache"`
	EscalationReason string   `json:"escalation_reason,omitempty"`
}

// VerdictFromScore maps a risk score to a verdict using the conventional
// bands shared by the hybrid and deep tiers.
func VerdictFromScore(score float64) Verdict {
	switch {
	case score >= 0.8:
		return VerdictDangerous
	case score >= 0.5:
		return VerdictSuspicious
	default:
		return VerdictSafe
	}
}

// RiskLevelFromScore maps a risk score to the letter grade used by the
// deep scanner pipeline.
func RiskLevelFromScore(score float64) string {
	switch {
	case score >= 0.9:
		return "F"
	case score >= 0.8:
		return "E"
	case score >= 0.6:
		return "D"
	case score >= 0.4:
		return "C"
	case score >= 0.2:
		return "B"
	default:
		return "A"
	}
}
