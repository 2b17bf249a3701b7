// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// serviceClient is a thin wrapper over the shield service HTTP API, shared
// by all commands.
type serviceClient struct {
	baseURL    string
	httpClient *http.Client
}

func newServiceClient(baseURL string) *serviceClient {
	return &serviceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Deep scans can legitimately take minutes.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// apiError carries the service's plain-language message and reference id.
type apiError struct {
	Status    int
	Message   string
	Reference string
}

func (e *apiError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("%s (reference %s)", e.Message, e.Reference)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("service returned status %d", e.Status)
}

func (c *serviceClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *serviceClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *serviceClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach the shield service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed struct {
			Error     string `json:"error"`
			Reference string `json:"reference"`
		}
		json.Unmarshal(raw, &parsed)
		return &apiError{Status: resp.StatusCode, Message: parsed.Error, Reference: parsed.Reference}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
