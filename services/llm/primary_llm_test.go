package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestPrimaryClient_Generate tests the /chat round trip.
func TestPrimaryClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("path = %s, want /chat", r.URL.Path)
		}
		var req primaryChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content":           "looks like phishing",
			"inference_time_ms": 120,
		})
	}))
	defer srv.Close()

	c, err := NewPrimaryClient(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewPrimaryClient: %v", err)
	}
	answer, err := c.Generate(context.Background(), "persona", "is x safe?", GenerationParams{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "looks like phishing" {
		t.Errorf("answer = %q", answer)
	}
}

// TestPrimaryClient_ErrorStatus tests that non-200 surfaces as an error.
func TestPrimaryClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewPrimaryClient(srv.URL, time.Second)
	if _, err := c.Generate(context.Background(), "", "q", GenerationParams{}); err == nil {
		t.Error("want error on 503")
	}
}

// TestPrimaryClient_RequiresBaseURL tests constructor validation.
func TestPrimaryClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewPrimaryClient("", time.Second); err == nil {
		t.Error("want error for empty base URL")
	}
}

// TestLocalLlamaCppClient_Generate tests the flat-prompt completion call.
func TestLocalLlamaCppClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			t.Errorf("path = %s, want /completion", r.URL.Path)
		}
		var payload localCompletionPayload
		json.NewDecoder(r.Body).Decode(&payload)
		if !strings.HasPrefix(payload.Prompt, "persona\n\n") {
			t.Errorf("system prompt not prepended: %q", payload.Prompt)
		}
		json.NewEncoder(w).Encode(localCompletionResponse{Content: "local answer"})
	}))
	defer srv.Close()

	c, err := NewLocalLlamaCppClient(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewLocalLlamaCppClient: %v", err)
	}
	answer, err := c.Generate(context.Background(), "persona", "q", GenerationParams{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "local answer" {
		t.Errorf("answer = %q", answer)
	}
}
