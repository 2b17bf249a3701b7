package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// ErrAllProvidersExhausted means every configured backend failed. Callers
// render this as "currently unavailable", never as an empty answer.
var ErrAllProvidersExhausted = errors.New("all answer providers exhausted")

const defaultSystemPrompt = "You are a security assistant that explains URL scan " +
	"results in plain language. Be direct about risk, never speculate beyond " +
	"the evidence you are given, and keep answers short."

const defaultProviderTimeout = 90 * time.Second

// ChainConfig tunes the answer chain.
type ChainConfig struct {
	// SystemPrompt overrides the default persona when non-empty.
	SystemPrompt string

	// ProviderTimeout bounds each provider attempt individually.
	ProviderTimeout time.Duration

	// MaxTokens caps each completion.
	MaxTokens int

	// OnFallback is called with the name of each provider that failed
	// before the chain moved on. May be nil.
	OnFallback func(provider string)
}

// AnswerGenerationChain tries an ordered list of backends until one
// produces an answer. The prompt is grounded in memory context when there
// is any; grounding failure degrades to the plain prompt rather than
// failing the question.
type AnswerGenerationChain struct {
	providers []LLMClient
	config    ChainConfig
}

// NewAnswerGenerationChain creates a chain over the given providers, in
// fallback order.
func NewAnswerGenerationChain(cfg ChainConfig, providers ...LLMClient) *AnswerGenerationChain {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	return &AnswerGenerationChain{providers: providers, config: cfg}
}

// Answer produces a response to the question, augmented with memory
// context when mctx holds relevant material.
func (c *AnswerGenerationChain) Answer(ctx context.Context, question string, mctx *datatypes.MemoryContext) (*datatypes.AskResponse, error) {
	if len(c.providers) == 0 {
		return nil, ErrAllProvidersExhausted
	}

	system := c.config.SystemPrompt
	grounded := false
	if mctx != nil && !mctx.InsufficientData {
		if rendered := RenderMemoryContext(mctx); rendered != "" {
			system = system + "\n\n" + rendered
			grounded = true
		}
	}

	params := GenerationParams{}
	if c.config.MaxTokens > 0 {
		maxTokens := c.config.MaxTokens
		params.MaxTokens = &maxTokens
	}

	var lastErr error
	for _, provider := range c.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.ProviderTimeout)
		answer, err := provider.Generate(attemptCtx, system, question, params)
		cancel()
		if err == nil {
			return &datatypes.AskResponse{
				Answer:   answer,
				Provider: provider.Name(),
				Grounded: grounded,
			}, nil
		}
		lastErr = err
		slog.Warn("answer provider failed, trying next",
			"provider", provider.Name(), "error", err)
		if c.config.OnFallback != nil {
			c.config.OnFallback(provider.Name())
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllProvidersExhausted, lastErr)
}

// RenderMemoryContext formats a memory context as labeled bullet sections
// for prompt injection. Returns "" when there is nothing to say.
func RenderMemoryContext(mctx *datatypes.MemoryContext) string {
	var b strings.Builder
	if len(mctx.RecentScans) > 0 {
		b.WriteString("Recent scans:\n")
		for _, m := range mctx.RecentScans {
			b.WriteString("- ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	if len(mctx.RelevantMemories) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Relevant memory:\n")
		for _, m := range mctx.RelevantMemories {
			b.WriteString("- ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	if len(mctx.ThreatPatterns) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Known threat patterns:\n")
		for _, p := range mctx.ThreatPatterns {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
