package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/higaso4186/ir-articles/pkg/core/config"
	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// GeminiClient serves the generation capabilities through Google's GenAI
// SDK. Temperature is pinned low for consistent analytical output.
type GeminiClient struct {
	client    *genai.Client
	model     string
	lastUsage *schema.TokenUsage
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient reads GEMINI_API_KEY and fails fast when it is missing.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := "gemini-2.0-flash-exp"
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		model = v
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) GenerateAnalysis(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt)
}

func (c *GeminiClient) GenerateSummary(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt)
}

func (c *GeminiClient) GenerateArticle(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt)
}

func (c *GeminiClient) LastUsage() *schema.TokenUsage { return c.lastUsage }

func (c *GeminiClient) ModelName() string { return c.model }

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	c.lastUsage = nil

	cleaned := strings.TrimSpace(prompt)
	if cleaned == "" {
		return "", fmt.Errorf("empty prompt provided")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(cleaned), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrEmptyContent
	}

	usage := &schema.TokenUsage{}
	if result.UsageMetadata != nil {
		usage.Input = int(result.UsageMetadata.PromptTokenCount)
		usage.CachedInput = int(result.UsageMetadata.CachedContentTokenCount)
		usage.Output = int(result.UsageMetadata.CandidatesTokenCount)
		usage.Total = int(result.UsageMetadata.TotalTokenCount)
	}
	c.lastUsage = usage
	return text, nil
}
