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
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// EdgeClient talks to the on-device inference sidecar.
//
// The sidecar speaks a small action-message contract:
//
//	{"action":"ping"}                     -> {"success":true}
//	{"action":"scan","payload":{"url":x}} -> {"success":true,"result":{...}}
//
// No response inside the timeout means the sidecar is not installed or
// not running; that is ErrTierUnavailable, not an error condition, and
// it is never retried.
type EdgeClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

type edgeMessage struct {
	Action  string       `json:"action"`
	Payload *edgePayload `json:"payload,omitempty"`
}

type edgePayload struct {
	URL string `json:"url"`
}

type edgeResponse struct {
	Success bool                  `json:"success"`
	Result  *datatypes.ScanResult `json:"result,omitempty"`
}

// NewEdgeClient creates the edge tier client. An empty baseURL means no
// sidecar is configured; every Scan then fails fast with
// ErrTierUnavailable.
func NewEdgeClient(baseURL string, timeout time.Duration) *EdgeClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EdgeClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Tier implements Client.
func (c *EdgeClient) Tier() datatypes.ScanTier { return datatypes.TierEdge }

// Ping reports whether the sidecar is reachable.
func (c *EdgeClient) Ping(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}
	resp, err := c.post(ctx, edgeMessage{Action: "ping"})
	if err != nil {
		return false
	}
	return resp.Success
}

// Scan implements Client.
func (c *EdgeClient) Scan(ctx context.Context, url string) (*datatypes.ScanResult, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("edge inference not configured: %w", ErrTierUnavailable)
	}

	start := time.Now()
	resp, err := c.post(ctx, edgeMessage{Action: "scan", Payload: &edgePayload{URL: url}})
	if err != nil {
		// A sidecar that does not answer is absent, not broken.
		if isUnreachable(err) {
			slog.Debug("edge sidecar unreachable", "error", err)
			return nil, fmt.Errorf("edge inference unreachable: %w", ErrTierUnavailable)
		}
		return nil, err
	}
	if !resp.Success || resp.Result == nil {
		return nil, &TierError{Tier: datatypes.TierEdge, Status: http.StatusOK, Body: "sidecar reported failure"}
	}

	result := *resp.Result
	result.URL = url
	result.ScanTier = datatypes.TierEdge
	result.LatencyMs = time.Since(start).Milliseconds()
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	return &result, nil
}

func (c *EdgeClient) post(ctx context.Context, msg edgeMessage) (*edgeResponse, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal edge message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Silence within the timeout means unavailable per the
			// sidecar contract.
			return nil, fmt.Errorf("edge sidecar silent: %w", ErrTierUnavailable)
		}
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, &TierError{Tier: datatypes.TierEdge, Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed edgeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse edge response: %w", err)
	}
	return &parsed, nil
}

// isUnreachable classifies transport-level failures that mean "no
// sidecar here" rather than "sidecar misbehaving".
func isUnreachable(err error) bool {
	if errors.Is(err, ErrTierUnavailable) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
