// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memoryctx retrieves and stores scan history against the memory
// backend so that answer generation can be grounded in what the service
// has actually seen.
package memoryctx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianShield/pkg/cache"
	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
	"github.com/AleutianAI/AleutianShield/services/shield/tiers"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultCacheCapacity = 128
	defaultCacheTTL      = 5 * time.Minute

	relevanceLimit = 5
	minSimilarity  = 0.6
	recencyLimit   = 3

	maxBodyBytes = 1 << 20
)

// Config holds the memory backend connection and cache tuning.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	CacheCapacity int
	CacheTTL      time.Duration
}

// Service talks to the memory backend. Context lookups are cached per
// query; scan writes happen in the background and never block or fail a
// scan.
type Service struct {
	baseURL    string
	httpClient *http.Client
	tokens     tiers.TokenSource
	cache      *cache.Cache[string, *datatypes.MemoryContext]
}

// New creates a memory context service. An empty BaseURL is allowed; every
// lookup then reports insufficient data and writes are dropped.
func New(cfg Config, tokens tiers.TokenSource) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Service{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		cache:      cache.New[string, *datatypes.MemoryContext](cfg.CacheCapacity, cfg.CacheTTL, nil),
	}
}

type searchRequest struct {
	Query         string   `json:"query"`
	Limit         int      `json:"limit"`
	MinSimilarity float64  `json:"min_similarity,omitempty"`
	Types         []string `json:"memory_types,omitempty"`
	SortBy        string   `json:"sort_by,omitempty"`
}

type searchResponse struct {
	Memories []datatypes.Memory `json:"memories"`
	Total    int                `json:"total"`
}

type storeRequest struct {
	Type       datatypes.MemoryType `json:"memory_type"`
	Content    string               `json:"content"`
	Importance float64              `json:"importance"`
	Metadata   map[string]string    `json:"metadata,omitempty"`
}

// GetContextForQuery returns the memory context for a user query. Results
// are cached; concurrent callers with the same query share one backend
// round trip.
func (s *Service) GetContextForQuery(ctx context.Context, query string) (*datatypes.MemoryContext, error) {
	if s.baseURL == "" {
		return &datatypes.MemoryContext{InsufficientData: true}, nil
	}
	return s.cache.GetOrFill(ctx, query, func(ctx context.Context) (*datatypes.MemoryContext, error) {
		return s.buildContext(ctx, query)
	})
}

// buildContext runs the two backend searches and merges them. The relevance
// search drives InsufficientData; the recency search only adds color and
// its failure is tolerated.
func (s *Service) buildContext(ctx context.Context, query string) (*datatypes.MemoryContext, error) {
	relevant, err := s.search(ctx, searchRequest{
		Query:         query,
		Limit:         relevanceLimit,
		MinSimilarity: minSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("relevance search: %w", err)
	}

	recent, err := s.search(ctx, searchRequest{
		Query:  query,
		Limit:  recencyLimit,
		Types:  []string{string(datatypes.MemoryTypeEpisodic), string(datatypes.MemoryTypeSemantic)},
		SortBy: "recent",
	})
	if err != nil {
		slog.Warn("recency search failed, continuing with relevance results only",
			"error", err)
		recent = nil
	}

	mctx := &datatypes.MemoryContext{
		RelevantMemories: relevant,
		RecentScans:      recent,
		InsufficientData: len(relevant) == 0,
	}
	for _, m := range relevant {
		if m.Type == datatypes.MemoryTypeLearned {
			mctx.ThreatPatterns = append(mctx.ThreatPatterns, m.Content)
		}
	}
	return mctx, nil
}

// StoreScanMemory records a completed scan as an episodic memory. The write
// runs in a goroutine so the scan response is never delayed; failures are
// logged and swallowed.
func (s *Service) StoreScanMemory(scan *datatypes.ScanResult) {
	if s.baseURL == "" || scan == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.httpClient.Timeout)
		defer cancel()
		if err := s.saveScan(ctx, scan); err != nil {
			slog.Error("failed to save scan memory", "url", scan.URL, "error", err)
		}
	}()
}

func (s *Service) saveScan(ctx context.Context, scan *datatypes.ScanResult) error {
	req := storeRequest{
		Type: datatypes.MemoryTypeEpisodic,
		Content: fmt.Sprintf("Scanned %s: verdict %s (risk %.2f, tier %s)",
			scan.URL, scan.Verdict, scan.RiskScore, scan.ScanTier),
		Importance: ScanImportance(scan),
		Metadata: map[string]string{
			"url":     scan.URL,
			"verdict": string(scan.Verdict),
			"tier":    string(scan.ScanTier),
		},
	}
	return s.post(ctx, "/memories", req, nil)
}

// ScanImportance grades how much a scan outcome matters for recall.
// Dangerous verdicts dominate, a very high risk score bumps anything.
func ScanImportance(scan *datatypes.ScanResult) float64 {
	importance := 0.5
	switch scan.Verdict {
	case datatypes.VerdictDangerous:
		importance = 0.9
	case datatypes.VerdictSuspicious:
		importance = 0.7
	}
	if scan.RiskScore > 0.8 {
		importance += 0.1
	}
	if importance > 1.0 {
		importance = 1.0
	}
	return importance
}

func (s *Service) search(ctx context.Context, req searchRequest) ([]datatypes.Memory, error) {
	var resp searchResponse
	if err := s.post(ctx, "/memories/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Memories, nil
}

func (s *Service) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if s.tokens != nil {
		token, err := s.tokens.EnsureValidToken(ctx)
		if err != nil {
			return fmt.Errorf("resolve token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("memory backend request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("memory backend returned status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
