// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing maps an edge prediction to a scan tier.
package routing

import "github.com/AleutianAI/AleutianShield/services/shield/datatypes"

// Escalation reasons reported on routing decisions. These are shown in
// scan reasoning output, so they read as plain language.
const (
	ReasonEnrichWithTI = "confidence below high threshold, enrich with threat intelligence"
	ReasonFullPipeline = "low confidence requires full pipeline analysis"
)

// Thresholds are the confidence cut points. They come from
// configuration so tuning never redeploys routing logic.
type Thresholds struct {
	// High: at or above this confidence the edge verdict stands alone.
	High float64

	// Medium: at or above this (but below High) the verdict is worth
	// enriching with threat intelligence; below it, only the full
	// pipeline will do.
	Medium float64
}

// DefaultThresholds returns the tuned production cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.90, Medium: 0.70}
}

// Router is a pure decision function over a prediction. It holds no
// mutable state, performs no I/O, and the same prediction always yields
// the same decision (no hysteresis).
type Router struct {
	thresholds Thresholds
}

// New creates a Router. Zero or inverted thresholds fall back to the
// defaults rather than silently routing everything to one tier.
func New(t Thresholds) *Router {
	if t.High <= 0 || t.Medium <= 0 || t.Medium >= t.High {
		t = DefaultThresholds()
	}
	return &Router{thresholds: t}
}

// Route decides which tier should produce the verdict for a prediction.
func (r *Router) Route(pred datatypes.Prediction) datatypes.RoutingDecision {
	switch {
	case pred.Confidence >= r.thresholds.High:
		return datatypes.RoutingDecision{
			Tier:        datatypes.TierEdge,
			ShouldCache: true,
		}
	case pred.Confidence >= r.thresholds.Medium:
		return datatypes.RoutingDecision{
			Tier:             datatypes.TierHybrid,
			ShouldCache:      true,
			EscalationReason: ReasonEnrichWithTI,
		}
	default:
		return datatypes.RoutingDecision{
			Tier:             datatypes.TierDeep,
			ShouldCache:      true,
			EscalationReason: ReasonFullPipeline,
		}
	}
}
