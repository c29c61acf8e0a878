package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/higaso4186/ir-articles/pkg/core/config"
	"github.com/higaso4186/ir-articles/pkg/core/schema"
	"github.com/higaso4186/ir-articles/pkg/core/utils"
)

const defaultChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// Per-capability completion token limits; constrained model families get
// larger budgets because reasoning tokens are billed against them.
var tokenLimits = map[string]struct{ Normal, Constrained int }{
	"analysis": {1200, 8000},
	"summary":  {600, 4000},
	"article":  {4096, 12000},
}

// OpenAIClient wraps an OpenAI-compatible chat-completions endpoint with
// prompt cleaning, model-family parameter shaping, bounded retry with
// exponential backoff, and usage accounting.
type OpenAIClient struct {
	apiKey     string
	cfg        *config.Config
	httpClient *http.Client
	baseURL    string
	lastUsage  *schema.TokenUsage

	// sleep is swappable so retry tests run without real delays.
	sleep func(time.Duration)
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient reads OPENAI_API_KEY (and optional OPENAI_BASE_URL) and
// fails fast when the credential is missing.
func NewOpenAIClient(cfg *config.Config) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultChatCompletionsURL
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		cfg:        cfg,
		httpClient: &http.Client{},
		baseURL:    baseURL,
		sleep:      time.Sleep,
	}, nil
}

func (c *OpenAIClient) GenerateAnalysis(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "analysis")
}

func (c *OpenAIClient) GenerateSummary(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "summary")
}

func (c *OpenAIClient) GenerateArticle(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "article")
}

func (c *OpenAIClient) LastUsage() *schema.TokenUsage { return c.lastUsage }

func (c *OpenAIClient) ModelName() string { return c.cfg.Model }

// cleanPrompt trims the prompt and, for constrained model families,
// truncates over-budget prompts keeping a fixed prefix and suffix with an
// explicit omission marker in between.
func (c *OpenAIClient) cleanPrompt(prompt string) (string, error) {
	cleaned := strings.TrimSpace(prompt)
	if cleaned == "" {
		return "", fmt.Errorf("empty prompt provided")
	}
	budget := c.cfg.Profile.PromptCharBudget
	if runes := []rune(cleaned); budget > 0 && len(runes) > budget {
		prefix := string(runes[:4000])
		suffix := string(runes[len(runes)-4000:])
		cleaned = prefix + "\n\n[中間部分省略]\n\n" + suffix
	}
	return cleaned, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		TotalTokens         int `json:"total_tokens"`
		PromptTokensDetails *struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

func (c *OpenAIClient) buildRequestBody(prompt string, capability string) ([]byte, error) {
	limits := tokenLimits[capability]
	profile := c.cfg.Profile

	maxTokens := limits.Normal
	messages := []chatMessage{{Role: "user", Content: prompt}}
	if !profile.SupportsTemperature {
		// Constrained families need an explicit system nudge to avoid
		// degenerate short answers.
		maxTokens = limits.Constrained
		messages = []chatMessage{
			{Role: "system", Content: "あなたは詳細で有用な分析を提供する専門家です。必ず具体的で詳細な回答を生成してください。"},
			{Role: "user", Content: prompt},
		}
	}

	body := map[string]interface{}{
		"model":                 c.cfg.Model,
		"messages":              messages,
		profile.TokenLimitField: maxTokens,
	}
	if profile.SupportsTemperature {
		body["temperature"] = 0.3
	}
	return json.Marshal(body)
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// generate runs the call state machine: INIT -> SENDING -> (SUCCESS |
// RETRYABLE -> backoff -> SENDING | FATAL). Exhausting retries propagates
// the last error.
func (c *OpenAIClient) generate(ctx context.Context, prompt string, capability string) (string, error) {
	c.lastUsage = nil

	cleaned, err := c.cleanPrompt(prompt)
	if err != nil {
		return "", err
	}
	bodyBytes, err := c.buildRequestBody(cleaned, capability)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.cfg.BackoffBase) * math.Pow(c.cfg.BackoffGrowth, float64(attempt-1)))
			c.sleep(delay)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyBytes))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("chat completions call failed: %w", err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return "", fmt.Errorf("failed to read response body: %w", readErr)
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, string(respBody))
		}

		return c.parseResponse(respBody)
	}
	return "", lastErr
}

func (c *OpenAIClient) parseResponse(body []byte) (string, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Some compatible gateways emit slightly malformed JSON; try the
		// lenient decoders before giving up.
		if lerr := utils.DecodeLenient(string(body), &parsed); lerr != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices: %s", string(body))
	}

	choice := parsed.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		if choice.FinishReason == "content_filter" {
			return "", ErrContentFiltered
		}
		return "", fmt.Errorf("%w (finish_reason: %s)", ErrEmptyContent, choice.FinishReason)
	}

	usage := &schema.TokenUsage{}
	if parsed.Usage != nil {
		usage.Input = parsed.Usage.PromptTokens
		usage.Output = parsed.Usage.CompletionTokens
		usage.Total = parsed.Usage.TotalTokens
		if parsed.Usage.PromptTokensDetails != nil {
			usage.CachedInput = parsed.Usage.PromptTokensDetails.CachedTokens
		}
	}
	c.lastUsage = usage
	return content, nil
}
