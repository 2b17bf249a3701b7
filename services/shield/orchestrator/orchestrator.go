// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator runs the full scan escalation protocol for one URL:
// cache, edge baseline, confidence routing, escalation to the hybrid or
// deep tier, and graceful degradation when an escalated tier fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianShield/pkg/cache"
	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
	"github.com/AleutianAI/AleutianShield/services/shield/observability"
	"github.com/AleutianAI/AleutianShield/services/shield/routing"
	"github.com/AleutianAI/AleutianShield/services/shield/tiers"
)

const (
	defaultCacheCapacity = 256
	defaultCacheTTL      = 10 * time.Minute
)

// EdgeScanner is the on-device baseline tier.
type EdgeScanner interface {
	Scan(ctx context.Context, url string) (*datatypes.ScanResult, error)
}

// HybridScanner enriches a baseline verdict with threat intelligence. A
// nil baseline means the edge tier never produced one.
type HybridScanner interface {
	ScanWithBaseline(ctx context.Context, url string, baseline *datatypes.ScanResult) (*datatypes.ScanResult, error)
}

// DeepScanner invokes the full remote scanning pipeline.
type DeepScanner interface {
	Scan(ctx context.Context, url string) (*datatypes.ScanResult, error)
}

// MemorySink receives completed scans for best-effort recall later.
type MemorySink interface {
	StoreScanMemory(scan *datatypes.ScanResult)
}

// Config tunes the orchestrator's result cache.
type Config struct {
	CacheCapacity int
	CacheTTL      time.Duration
}

// Deps are the injected collaborators. Memory and Metrics may be nil.
type Deps struct {
	Edge    EdgeScanner
	Hybrid  HybridScanner
	Deep    DeepScanner
	Router  *routing.Router
	Memory  MemorySink
	Metrics *observability.ScanMetrics
}

// Orchestrator coordinates one assessment at a time per URL: concurrent
// Assess calls for the same URL share a single in-flight pipeline, and
// tier invocations within one pipeline are strictly sequential.
type Orchestrator struct {
	edge    EdgeScanner
	hybrid  HybridScanner
	deep    DeepScanner
	router  *routing.Router
	memory  MemorySink
	metrics *observability.ScanMetrics

	results *cache.Cache[string, *datatypes.ScanResult]
	flight  singleflight.Group
}

// New creates an orchestrator. Edge, Hybrid, Deep, and Router are
// required.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Orchestrator{
		edge:    deps.Edge,
		hybrid:  deps.Hybrid,
		deep:    deps.Deep,
		router:  deps.Router,
		memory:  deps.Memory,
		metrics: deps.Metrics,
		results: cache.New[string, *datatypes.ScanResult](cfg.CacheCapacity, cfg.CacheTTL, nil),
	}
}

// Assess produces a verdict for the URL. A cached result is returned
// without invoking any tier. The returned result's ScanTier names the
// tier that actually produced it, which may be lower than the tier the
// router asked for if that tier failed.
func (o *Orchestrator) Assess(ctx context.Context, url string) (*datatypes.ScanResult, error) {
	if res, ok := o.results.Get(url); ok {
		if o.metrics != nil {
			o.metrics.RecordCacheHit()
		}
		return res, nil
	}
	if o.metrics != nil {
		o.metrics.RecordCacheMiss()
	}

	v, err, _ := o.flight.Do(url, func() (any, error) {
		if res, ok := o.results.Get(url); ok {
			return res, nil
		}
		res, shouldCache, err := o.runPipeline(ctx, url)
		if err != nil {
			return nil, err
		}
		if shouldCache {
			o.results.Set(url, res)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*datatypes.ScanResult), nil
}

// runPipeline executes steps 2-4 of the protocol and reports whether the
// result may be cached.
func (o *Orchestrator) runPipeline(ctx context.Context, url string) (*datatypes.ScanResult, bool, error) {
	start := time.Now()

	edgeRes, err := o.edge.Scan(ctx, url)
	if err != nil {
		if !errors.Is(err, tiers.ErrTierUnavailable) {
			slog.Warn("edge tier failed", "url", url, "error", err)
		}
		return o.assessWithoutEdge(ctx, url, start)
	}

	decision := o.router.Route(datatypes.Prediction{
		Confidence:  edgeRes.Confidence,
		Probability: edgeRes.RiskScore,
	})
	if decision.Tier == datatypes.TierEdge {
		o.finish(edgeRes, start)
		return edgeRes, decision.ShouldCache, nil
	}

	if o.metrics != nil {
		o.metrics.RecordEscalation(datatypes.TierEdge, decision.Tier)
	}

	escalated, err := o.invokeTier(ctx, decision, url, edgeRes)
	if err != nil {
		// The edge verdict is degraded but real; prefer it over failing.
		slog.Warn("escalated tier failed, serving edge result",
			"url", url, "tier", decision.Tier, "error", err)
		if o.metrics != nil {
			o.metrics.RecordDegraded(decision.Tier)
		}
		o.finish(edgeRes, start)
		return edgeRes, decision.ShouldCache, nil
	}
	if decision.EscalationReason != "" {
		escalated.Reasoning = append(escalated.Reasoning, decision.EscalationReason)
	}
	o.finish(escalated, start)
	return escalated, decision.ShouldCache, nil
}

// assessWithoutEdge handles an absent edge tier: the hybrid tier becomes
// the baseline. If it fails too, an UNKNOWN verdict is synthesized so the
// caller still gets an answer; synthesized results are never cached.
func (o *Orchestrator) assessWithoutEdge(ctx context.Context, url string, start time.Time) (*datatypes.ScanResult, bool, error) {
	res, err := o.hybrid.ScanWithBaseline(ctx, url, nil)
	if err == nil {
		o.finish(res, start)
		return res, true, nil
	}
	slog.Warn("hybrid baseline failed with edge unavailable", "url", url, "error", err)
	if o.metrics != nil {
		o.metrics.RecordDegraded(datatypes.TierHybrid)
	}

	unknown := &datatypes.ScanResult{
		URL:        url,
		Verdict:    datatypes.VerdictUnknown,
		RiskLevel:  "C",
		Confidence: 0,
		Reasoning:  []string{fmt.Sprintf("no scan tier reachable: %v", err)},
		LatencyMs:  time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	// ScanTier stays empty: no tier produced this verdict, and it is
	// synthesized rather than remembered or cached.
	return unknown, false, nil
}

func (o *Orchestrator) invokeTier(ctx context.Context, decision datatypes.RoutingDecision, url string, baseline *datatypes.ScanResult) (*datatypes.ScanResult, error) {
	switch decision.Tier {
	case datatypes.TierHybrid:
		return o.hybrid.ScanWithBaseline(ctx, url, baseline)
	case datatypes.TierDeep:
		return o.deep.Scan(ctx, url)
	default:
		return nil, fmt.Errorf("router named unexpected tier %q", decision.Tier)
	}
}

// finish records metrics and hands the result to memory. Neither may
// delay or fail the scan.
func (o *Orchestrator) finish(res *datatypes.ScanResult, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordScan(res.ScanTier, res.Verdict, time.Since(start).Seconds())
	}
	if o.memory != nil {
		o.memory.StoreScanMemory(res)
	}
}
