// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// TestServiceClient_PostJSON tests the scan round trip against a stub
// service.
func TestServiceClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scan/assess" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(datatypes.ScanResult{
			Verdict:   datatypes.VerdictSafe,
			RiskLevel: "A",
		})
	}))
	defer srv.Close()

	client := newServiceClient(srv.URL)
	var result datatypes.ScanResult
	err := client.postJSON(context.Background(), "/v1/scan/assess",
		datatypes.AssessRequest{URL: "https://example.test"}, &result)
	if err != nil {
		t.Fatalf("postJSON: %v", err)
	}
	if result.Verdict != datatypes.VerdictSafe {
		t.Errorf("Verdict = %s, want SAFE", result.Verdict)
	}
}

// TestServiceClient_ErrorCarriesReference tests that the service's plain
// message and reference id survive into the CLI error.
func TestServiceClient_ErrorCarriesReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error":     "Scan temporarily unavailable. Please try again in a moment.",
			"reference": "abc-123",
		})
	}))
	defer srv.Close()

	client := newServiceClient(srv.URL)
	err := client.postJSON(context.Background(), "/v1/scan/assess",
		datatypes.AssessRequest{URL: "https://example.test"}, nil)

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *apiError", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable || apiErr.Reference != "abc-123" {
		t.Errorf("apiError = %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("error text should include the reference: %s", err.Error())
	}
}

// TestServiceClient_Unreachable tests the connection-failure message.
func TestServiceClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newServiceClient(srv.URL)
	err := client.getJSON(context.Background(), "/health", nil)
	if err == nil || !strings.Contains(err.Error(), "could not reach") {
		t.Errorf("err = %v, want a could-not-reach message", err)
	}
}
