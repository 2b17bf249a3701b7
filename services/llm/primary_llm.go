package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// PrimaryClient talks to the primary networked inference service. It is
// the first provider in the answer chain and the only one that sees the
// richest prompts in practice.
type PrimaryClient struct {
	httpClient *http.Client
	baseURL    string
}

type primaryChatRequest struct {
	Messages    []datatypes.Message `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float32            `json:"temperature,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
}

type primaryChatResponse struct {
	Content string `json:"content"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	InferenceTimeMs int64 `json:"inference_time_ms"`
}

func NewPrimaryClient(baseURL string, timeout time.Duration) (*PrimaryClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("primary inference base URL not set")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &PrimaryClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (p *PrimaryClient) Name() string { return "primary" }

// Generate implements the LLMClient interface
func (p *PrimaryClient) Generate(ctx context.Context, system, prompt string,
	params GenerationParams) (string, error) {

	messages := make([]datatypes.Message, 0, 2)
	if system != "" {
		messages = append(messages, datatypes.Message{Role: "system", Content: system})
	}
	messages = append(messages, datatypes.Message{Role: "user", Content: prompt})

	req := primaryChatRequest{Messages: messages, Stop: params.Stop}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.Temperature != nil {
		req.Temperature = params.Temperature
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("primary inference call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("primary inference returned status %d", resp.StatusCode)
	}

	var parsed primaryChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if parsed.Content == "" {
		return "", fmt.Errorf("primary inference returned empty content")
	}

	slog.Debug("Received response from primary inference",
		"inference_time_ms", parsed.InferenceTimeMs,
		"completion_tokens", parsed.Usage.CompletionTokens)
	return parsed.Content, nil
}
