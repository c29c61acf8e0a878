// Package llm abstracts the text-generation backend behind a small
// capability surface: analysis, summary and article generation plus token
// accounting for the most recent call.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/higaso4186/ir-articles/pkg/core/config"
	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// Client is the generation capability the pipeline consumes. LastUsage is
// reset at the start of each call and reflects only the successful attempt.
type Client interface {
	GenerateAnalysis(ctx context.Context, prompt string) (string, error)
	GenerateSummary(ctx context.Context, prompt string) (string, error)
	GenerateArticle(ctx context.Context, prompt string) (string, error)
	LastUsage() *schema.TokenUsage
	ModelName() string
}

// Content failures are distinct from transport failures: blank output is
// never silently passed through.
var (
	ErrEmptyContent    = errors.New("provider returned empty response content")
	ErrContentFiltered = errors.New("content was filtered by the provider safety system")
)

// New resolves a provider name to a client. openai and gemini require
// credentials at construction and fail fast without them.
func New(ctx context.Context, provider string, cfg *config.Config) (Client, error) {
	switch provider {
	case "mock":
		return NewMockClient(), nil
	case "openai":
		return NewOpenAIClient(cfg)
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", provider)
	}
}
