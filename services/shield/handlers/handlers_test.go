// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianShield/services/llm"
	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAssessor struct {
	result *datatypes.ScanResult
	err    error
}

func (s *stubAssessor) Assess(ctx context.Context, url string) (*datatypes.ScanResult, error) {
	return s.result, s.err
}

type stubAnswerer struct {
	resp *datatypes.AskResponse
	err  error
}

func (s *stubAnswerer) Answer(ctx context.Context, question string, mctx *datatypes.MemoryContext) (*datatypes.AskResponse, error) {
	return s.resp, s.err
}

type stubContextProvider struct {
	mctx      *datatypes.MemoryContext
	err       error
	lastQuery string
}

func (s *stubContextProvider) GetContextForQuery(ctx context.Context, query string) (*datatypes.MemoryContext, error) {
	s.lastQuery = query
	return s.mctx, s.err
}

func postJSON(t *testing.T, handler gin.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST(path, handler)

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHandleAssess_Success tests the happy path response body.
func TestHandleAssess_Success(t *testing.T) {
	assessor := &stubAssessor{result: &datatypes.ScanResult{
		URL:     "https://example.test",
		Verdict: datatypes.VerdictSafe,
	}}
	w := postJSON(t, HandleAssess(assessor), "/v1/scan/assess",
		datatypes.AssessRequest{URL: "https://example.test"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var res datatypes.ScanResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Verdict != datatypes.VerdictSafe {
		t.Errorf("Verdict = %s, want SAFE", res.Verdict)
	}
}

// TestHandleAssess_InvalidURL tests request validation.
func TestHandleAssess_InvalidURL(t *testing.T) {
	w := postJSON(t, HandleAssess(&stubAssessor{}), "/v1/scan/assess",
		datatypes.AssessRequest{URL: "not a url"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// TestHandleAssess_FailureHidesRawError tests that the user sees plain
// language plus a reference id, never the upstream error text.
func TestHandleAssess_FailureHidesRawError(t *testing.T) {
	assessor := &stubAssessor{err: errors.New("tier deep returned status 502: upstream gateway exploded")}
	w := postJSON(t, HandleAssess(assessor), "/v1/scan/assess",
		datatypes.AssessRequest{URL: "https://example.test"})

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "502") || strings.Contains(body, "exploded") {
		t.Errorf("raw upstream error leaked to the user: %s", body)
	}
	var parsed map[string]string
	json.Unmarshal(w.Body.Bytes(), &parsed)
	if parsed["reference"] == "" {
		t.Error("error response missing a correlation reference")
	}
}

// TestHandleAsk_GroundedAnswer tests the memory-backed happy path.
func TestHandleAsk_GroundedAnswer(t *testing.T) {
	answerer := &stubAnswerer{resp: &datatypes.AskResponse{
		Answer:   "that domain was flagged yesterday",
		Provider: "primary",
		Grounded: true,
	}}
	memory := &stubContextProvider{mctx: &datatypes.MemoryContext{}}
	w := postJSON(t, HandleAsk(answerer, memory), "/v1/chat/ask",
		datatypes.AskRequest{Question: "is example.test safe?"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var resp datatypes.AskResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Grounded || resp.Provider != "primary" {
		t.Errorf("resp = %+v, want grounded primary answer", resp)
	}
}

// TestHandleAsk_PinnedURLJoinsLookup tests that a pinned URL biases the
// memory lookup toward that URL's scan history.
func TestHandleAsk_PinnedURLJoinsLookup(t *testing.T) {
	answerer := &stubAnswerer{resp: &datatypes.AskResponse{Answer: "flagged", Provider: "primary"}}
	memory := &stubContextProvider{mctx: &datatypes.MemoryContext{}}
	w := postJSON(t, HandleAsk(answerer, memory), "/v1/chat/ask",
		datatypes.AskRequest{Question: "why was this blocked?", URL: "https://example.test/login"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(memory.lastQuery, "https://example.test/login") {
		t.Errorf("lookup query = %q, want the pinned URL included", memory.lastQuery)
	}
	if !strings.Contains(memory.lastQuery, "why was this blocked?") {
		t.Errorf("lookup query = %q, want the question included", memory.lastQuery)
	}
}

// TestHandleAsk_MemoryFailureStillAnswers tests graceful degradation of
// the memory lookup.
func TestHandleAsk_MemoryFailureStillAnswers(t *testing.T) {
	answerer := &stubAnswerer{resp: &datatypes.AskResponse{Answer: "plain answer", Provider: "primary"}}
	memory := &stubContextProvider{err: errors.New("memory backend down")}
	w := postJSON(t, HandleAsk(answerer, memory), "/v1/chat/ask",
		datatypes.AskRequest{Question: "q?"})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (memory failure must not fail the question)", w.Code)
	}
}

// TestHandleAsk_ExhaustedIs503 tests the total-failure rendering.
func TestHandleAsk_ExhaustedIs503(t *testing.T) {
	answerer := &stubAnswerer{err: llm.ErrAllProvidersExhausted}
	w := postJSON(t, HandleAsk(answerer, nil), "/v1/chat/ask",
		datatypes.AskRequest{Question: "q?"})

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "currently unavailable") {
		t.Errorf("body = %s, want a plain unavailable message", w.Body.String())
	}
}

// TestHandleAsk_EmptyQuestionRejected tests validation.
func TestHandleAsk_EmptyQuestionRejected(t *testing.T) {
	w := postJSON(t, HandleAsk(&stubAnswerer{}, nil), "/v1/chat/ask",
		datatypes.AskRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

type stubSessions struct{ loggedOut bool }

func (s *stubSessions) Logout(ctx context.Context) { s.loggedOut = true }

// TestHandleLogout tests the session drop.
func TestHandleLogout(t *testing.T) {
	sessions := &stubSessions{}
	w := postJSON(t, HandleLogout(sessions), "/v1/session/logout", gin.H{})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !sessions.loggedOut {
		t.Error("Logout was not invoked")
	}
}

// TestHealthCheck tests liveness reporting.
func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
