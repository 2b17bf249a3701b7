package llm

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

// LocalLlamaCppClient is the offline fallback: a llama.cpp style server
// running on the same host. Slower and smaller than the primary service,
// but it works with the network down.
type LocalLlamaCppClient struct {
	httpClient *http.Client
	baseURL    string
}

type localCompletionPayload struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type localCompletionResponse struct {
	Content string `json:"content"`
}

func NewLocalLlamaCppClient(baseURL string, timeout time.Duration) (*LocalLlamaCppClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("local model base URL not set")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &LocalLlamaCppClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (l *LocalLlamaCppClient) Name() string { return "local" }

// Generate implements the LLMClient interface
func (l *LocalLlamaCppClient) Generate(ctx context.Context, system, prompt string,
	params GenerationParams) (string, error) {

	// llama.cpp takes one flat prompt, so the system prompt is prepended.
	fullPrompt := prompt
	if system != "" {
		fullPrompt = system + "\n\n" + prompt
	}

	payload := localCompletionPayload{Prompt: fullPrompt, Stop: params.Stop}
	if params.MaxTokens != nil {
		payload.NPredict = *params.MaxTokens
	} else {
		payload.NPredict = 512
	}
	if params.Temperature != nil {
		payload.Temperature = params.Temperature
	} else {
		var defaultTemperature float32 = 0.2
		payload.Temperature = &defaultTemperature
	}
	if params.TopK != nil {
		payload.TopK = params.TopK
	}
	if params.TopP != nil {
		payload.TopP = params.TopP
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("local model call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local model returned status %d", resp.StatusCode)
	}

	var parsed localCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if parsed.Content == "" {
		return "", fmt.Errorf("local model returned empty content")
	}
	return parsed.Content, nil
}
