package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Generate produces a completion. The system prompt may be empty.
	Generate(ctx context.Context, system, prompt string, params GenerationParams) (string, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}
