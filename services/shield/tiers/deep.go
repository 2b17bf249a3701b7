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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianShield/pkg/breaker"
	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// DeepClient invokes the full remote scanning pipeline.
//
// This is the only tier that retries: transient 5xx responses and
// transport errors are retried with linear backoff up to MaxRetries.
// Calls are rate-limited (the pipeline is expensive) and guarded by a
// circuit breaker so a dead pipeline fails fast instead of burning the
// full 60 second timeout per request.
type DeepClient struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	breaker    *breaker.Breaker
}

// DeepConfig configures the deep tier client.
type DeepConfig struct {
	BaseURL       string
	Timeout       time.Duration // default 60s
	MaxRetries    int           // default 2
	RetryBackoff  time.Duration // linear unit, default 1s
	RatePerSecond float64       // default 2
}

type deepScanRequest struct {
	URL     string          `json:"url"`
	Options deepScanOptions `json:"options"`
}

type deepScanOptions struct {
	IncludeTI bool `json:"include_ti"`
}

type deepScanResponse struct {
	RiskScore float64           `json:"riskScore"`
	RiskLevel string            `json:"riskLevel"`
	Decision  string            `json:"decision"`
	TIData    *tiLookupResponse `json:"tiData,omitempty"`
	Summary   string            `json:"summary,omitempty"`
}

// NewDeepClient creates the deep tier client.
func NewDeepClient(cfg DeepConfig, tokens TokenSource) *DeepClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	return &DeepClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		breaker:    breaker.New(breaker.Config{}),
	}
}

// Tier implements Client.
func (c *DeepClient) Tier() datatypes.ScanTier { return datatypes.TierDeep }

// Scan implements Client.
func (c *DeepClient) Scan(ctx context.Context, url string) (*datatypes.ScanResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("deep tier rate limit: %w", err)
	}

	start := time.Now()

	var parsed *deepScanResponse
	err := c.breaker.Execute(func() error {
		var err error
		parsed, err = c.scanWithRetries(ctx, url)
		return err
	})
	if errors.Is(err, breaker.ErrOpen) {
		return nil, &TierError{Tier: datatypes.TierDeep, Status: http.StatusServiceUnavailable, Body: "scanner pipeline circuit open"}
	}
	if err != nil {
		return nil, err
	}

	result := &datatypes.ScanResult{
		URL:        url,
		Verdict:    deepVerdict(parsed),
		RiskLevel:  parsed.RiskLevel,
		RiskScore:  parsed.RiskScore,
		Confidence: 0.95, // the pipeline is the ground-truth tier
		ScanTier:   datatypes.TierDeep,
		LatencyMs:  time.Since(start).Milliseconds(),
		Timestamp:  time.Now(),
	}
	if result.RiskLevel == "" {
		result.RiskLevel = datatypes.RiskLevelFromScore(parsed.RiskScore)
	}
	if parsed.Summary != "" {
		result.Reasoning = append(result.Reasoning, parsed.Summary)
	}
	if parsed.TIData != nil && parsed.TIData.Blacklist {
		result.Indicators = append(result.Indicators, datatypes.Indicator{
			Type:        "blacklist",
			Value:       url,
			Severity:    datatypes.SeverityCritical,
			Description: fmt.Sprintf("URL matched %d blacklist entries", parsed.TIData.BlacklistHits),
		})
	}
	return result, nil
}

// scanWithRetries performs the POST with bounded linear-backoff retries
// on transient failures. Attempt n sleeps n*backoff before retrying.
// The token is resolved once up front; an auth failure is not a
// pipeline fault and must not be retried here.
func (c *DeepClient) scanWithRetries(ctx context.Context, url string) (*deepScanResponse, error) {
	token, err := c.tokens.EnsureValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("deep tier auth: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying deep scan", "attempt", attempt, "max_attempts", c.maxRetries, "error", lastErr)
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return nil, &TierTimeoutError{Tier: datatypes.TierDeep, Timeout: c.timeout}
			}
		}

		parsed, err := c.scanOnce(ctx, url, token)
		if err == nil {
			return parsed, nil
		}
		lastErr = err

		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *DeepClient) scanOnce(ctx context.Context, url, token string) (*deepScanResponse, error) {
	body, err := json.Marshal(deepScanRequest{URL: url, Options: deepScanOptions{IncludeTI: true}})
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/scanner/scan", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TierTimeoutError{Tier: datatypes.TierDeep, Timeout: c.timeout}
		}
		return nil, fmt.Errorf("deep scan: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, &TierError{Tier: datatypes.TierDeep, Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed deepScanResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse deep scan response: %w", err)
	}
	return &parsed, nil
}

// isTransient reports whether a failure is worth retrying: 5xx statuses
// and transport errors are; 4xx and timeouts are not.
func isTransient(err error) bool {
	var tierErr *TierError
	if errors.As(err, &tierErr) {
		return tierErr.Status >= 500
	}
	var timeoutErr *TierTimeoutError
	if errors.As(err, &timeoutErr) {
		return false
	}
	// Transport-level failure (connection reset, refused, ...).
	return true
}

func deepVerdict(resp *deepScanResponse) datatypes.Verdict {
	switch strings.ToLower(resp.Decision) {
	case "safe", "allow":
		return datatypes.VerdictSafe
	case "suspicious", "warn":
		return datatypes.VerdictSuspicious
	case "dangerous", "block", "phishing":
		return datatypes.VerdictDangerous
	default:
		return datatypes.VerdictFromScore(resp.RiskScore)
	}
}
