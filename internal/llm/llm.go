// Package llm generates short comment text for uploaded videos.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}

// Params tune one completion. Zero fields fall back to the client Config.
type Params struct {
	Temperature float32
	MaxTokens   int
}

// Per-call defaults for the two comment prompts.
var (
	PinnedCommentParams = Params{Temperature: 0.7, MaxTokens: 80}
	ReplyParams         = Params{Temperature: 0.8, MaxTokens: 160}
)

// Config selects and configures the text generation provider.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float32
	MaxTokens      int
	TimeoutSeconds int
}

// NewCompleter builds the completer for cfg.Provider. An empty provider means OpenAI.
func NewCompleter(ctx context.Context, cfg Config) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAIClient(cfg)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// resolve fills unset fields of p from the client settings.
func (c Config) resolve(p Params) Params {
	if p.Temperature == 0 {
		p.Temperature = c.Temperature
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = c.MaxTokens
	}
	return p
}
