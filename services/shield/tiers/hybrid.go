// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tiers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// HybridClient enriches an edge baseline with a threat-intelligence
// list lookup.
//
// A blacklist hit short-circuits to DANGEROUS at maximum confidence
// regardless of the ML score; a whitelist hit short-circuits to SAFE.
// When both lists hit at once, the blacklist wins: the lists disagree,
// and the safe failure mode for disagreement is to warn. Absent any
// hit, the hybrid verdict is the edge verdict with confidence
// unchanged.
type HybridClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	tokens     TokenSource
}

type tiLookupRequest struct {
	URL string `json:"url"`
}

type tiLookupResponse struct {
	Whitelist     bool `json:"whitelist"`
	Blacklist     bool `json:"blacklist"`
	WhitelistHits int  `json:"whitelistHits"`
	BlacklistHits int  `json:"blacklistHits"`
}

// NewHybridClient creates the hybrid tier client.
func NewHybridClient(baseURL string, timeout time.Duration, tokens TokenSource) *HybridClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HybridClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}
}

// Tier implements Client.
func (c *HybridClient) Tier() datatypes.ScanTier { return datatypes.TierHybrid }

// Scan implements Client. Without an edge baseline the non-hit verdict
// degrades to UNKNOWN; the orchestrator only takes this path when edge
// inference is unavailable.
func (c *HybridClient) Scan(ctx context.Context, url string) (*datatypes.ScanResult, error) {
	return c.ScanWithBaseline(ctx, url, nil)
}

// ScanWithBaseline performs the TI lookup and merges it with the edge
// result. baseline may be nil.
func (c *HybridClient) ScanWithBaseline(ctx context.Context, url string, baseline *datatypes.ScanResult) (*datatypes.ScanResult, error) {
	start := time.Now()

	ti, err := c.lookup(ctx, url)
	if err != nil {
		return nil, err
	}

	result := &datatypes.ScanResult{
		URL:       url,
		ScanTier:  datatypes.TierHybrid,
		Timestamp: time.Now(),
	}

	switch {
	case ti.Blacklist:
		// Blacklist outranks everything, whitelist included.
		result.Verdict = datatypes.VerdictDangerous
		result.RiskScore = 1.0
		result.Confidence = 1.0
		result.RiskLevel = "F"
		result.Indicators = append(result.Indicators, datatypes.Indicator{
			Type:        "blacklist",
			Value:       url,
			Severity:    datatypes.SeverityCritical,
			Description: fmt.Sprintf("URL matched %d blacklist entries", ti.BlacklistHits),
		})
		result.Reasoning = append(result.Reasoning, "known malicious URL (threat intelligence blacklist)")
	case ti.Whitelist:
		result.Verdict = datatypes.VerdictSafe
		result.RiskScore = 0.0
		result.Confidence = 1.0
		result.RiskLevel = "A"
		result.Indicators = append(result.Indicators, datatypes.Indicator{
			Type:        "whitelist",
			Value:       url,
			Severity:    datatypes.SeverityLow,
			Description: fmt.Sprintf("URL matched %d whitelist entries", ti.WhitelistHits),
		})
		result.Reasoning = append(result.Reasoning, "known good URL (threat intelligence whitelist)")
	case baseline != nil:
		result.Verdict = baseline.Verdict
		result.RiskScore = baseline.RiskScore
		result.Confidence = baseline.Confidence
		result.RiskLevel = baseline.RiskLevel
		result.Indicators = append(result.Indicators, baseline.Indicators...)
		result.Reasoning = append(result.Reasoning, baseline.Reasoning...)
		result.Reasoning = append(result.Reasoning, "no threat intelligence hits, edge verdict stands")
	default:
		result.Verdict = datatypes.VerdictUnknown
		result.Reasoning = append(result.Reasoning, "no threat intelligence hits and no edge baseline available")
	}

	result.LatencyMs = time.Since(start).Milliseconds()
	return result, nil
}

func (c *HybridClient) lookup(ctx context.Context, url string) (*tiLookupResponse, error) {
	token, err := c.tokens.EnsureValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid tier auth: %w", err)
	}

	body, err := json.Marshal(tiLookupRequest{URL: url})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ti/lookup", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TierTimeoutError{Tier: datatypes.TierHybrid, Timeout: c.timeout}
		}
		return nil, fmt.Errorf("ti lookup: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, &TierError{Tier: datatypes.TierHybrid, Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed tiLookupResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse ti response: %w", err)
	}
	return &parsed, nil
}
