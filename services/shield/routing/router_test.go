// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"testing"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// TestRoute_TierBands walks confidence values across both thresholds,
// including the exact boundaries.
func TestRoute_TierBands(t *testing.T) {
	r := New(DefaultThresholds())

	tests := []struct {
		name       string
		confidence float64
		wantTier   datatypes.ScanTier
		wantReason string
	}{
		{"well above high", 0.99, datatypes.TierEdge, ""},
		{"exactly high", 0.90, datatypes.TierEdge, ""},
		{"just below high", 0.899, datatypes.TierHybrid, ReasonEnrichWithTI},
		{"mid band", 0.80, datatypes.TierHybrid, ReasonEnrichWithTI},
		{"exactly medium", 0.70, datatypes.TierHybrid, ReasonEnrichWithTI},
		{"just below medium", 0.699, datatypes.TierDeep, ReasonFullPipeline},
		{"low", 0.30, datatypes.TierDeep, ReasonFullPipeline},
		{"zero", 0, datatypes.TierDeep, ReasonFullPipeline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Route(datatypes.Prediction{Confidence: tt.confidence})
			if got.Tier != tt.wantTier {
				t.Errorf("Route(%.3f).Tier = %s, want %s", tt.confidence, got.Tier, tt.wantTier)
			}
			if got.EscalationReason != tt.wantReason {
				t.Errorf("Route(%.3f).EscalationReason = %q, want %q", tt.confidence, got.EscalationReason, tt.wantReason)
			}
			if !got.ShouldCache {
				t.Errorf("Route(%.3f).ShouldCache = false, want true for every band", tt.confidence)
			}
		})
	}
}

// TestRoute_HighConfidenceScenario pins the documented scenario:
// {confidence:0.95, probability:0.88} stays on the edge tier.
func TestRoute_HighConfidenceScenario(t *testing.T) {
	r := New(DefaultThresholds())

	got := r.Route(datatypes.Prediction{Confidence: 0.95, Probability: 0.88})
	want := datatypes.RoutingDecision{Tier: datatypes.TierEdge, ShouldCache: true}
	if got != want {
		t.Errorf("Route = %+v, want %+v", got, want)
	}
}

// TestRoute_LowConfidenceScenario pins the documented scenario:
// {confidence:0.55} escalates to the deep tier with the pipeline reason.
func TestRoute_LowConfidenceScenario(t *testing.T) {
	r := New(DefaultThresholds())

	got := r.Route(datatypes.Prediction{Confidence: 0.55})
	if got.Tier != datatypes.TierDeep || !got.ShouldCache || got.EscalationReason != ReasonFullPipeline {
		t.Errorf("Route = %+v, want deep/cache/%q", got, ReasonFullPipeline)
	}
}

// TestRoute_Deterministic tests that repeated calls with the same
// prediction yield identical decisions.
func TestRoute_Deterministic(t *testing.T) {
	r := New(DefaultThresholds())
	pred := datatypes.Prediction{Confidence: 0.75, Probability: 0.4}

	first := r.Route(pred)
	for i := 0; i < 100; i++ {
		if got := r.Route(pred); got != first {
			t.Fatalf("call %d: Route = %+v, want %+v (must be idempotent)", i, got, first)
		}
	}
}

// TestNew_InvalidThresholdsFallBack tests that nonsense thresholds do
// not produce a router that sends everything to one tier.
func TestNew_InvalidThresholdsFallBack(t *testing.T) {
	tests := []struct {
		name string
		in   Thresholds
	}{
		{"zero", Thresholds{}},
		{"inverted", Thresholds{High: 0.5, Medium: 0.9}},
		{"equal", Thresholds{High: 0.8, Medium: 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.in)
			if got := r.Route(datatypes.Prediction{Confidence: 0.95}); got.Tier != datatypes.TierEdge {
				t.Errorf("high confidence routed to %s, want edge under default thresholds", got.Tier)
			}
			if got := r.Route(datatypes.Prediction{Confidence: 0.10}); got.Tier != datatypes.TierDeep {
				t.Errorf("low confidence routed to %s, want deep under default thresholds", got.Tier)
			}
		})
	}
}

// TestRoute_CustomThresholds tests that configured cut points move the
// band boundaries.
func TestRoute_CustomThresholds(t *testing.T) {
	r := New(Thresholds{High: 0.80, Medium: 0.50})

	if got := r.Route(datatypes.Prediction{Confidence: 0.85}); got.Tier != datatypes.TierEdge {
		t.Errorf("0.85 with high=0.80 routed to %s, want edge", got.Tier)
	}
	if got := r.Route(datatypes.Prediction{Confidence: 0.60}); got.Tier != datatypes.TierHybrid {
		t.Errorf("0.60 with medium=0.50 routed to %s, want hybrid", got.Tier)
	}
}
