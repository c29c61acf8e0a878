package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/higaso4186/ir-articles/pkg/core/config"
)

func testConfig(model string) *config.Config {
	return &config.Config{
		Provider:      "openai",
		Model:         model,
		Profile:       config.ResolveProfile(model),
		MaxRetries:    3,
		BackoffBase:   time.Millisecond,
		BackoffGrowth: 2.0,
	}
}

func newTestClient(baseURL string, cfg *config.Config) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     "test-key",
		cfg:        cfg,
		httpClient: &http.Client{},
		baseURL:    baseURL,
		sleep:      func(time.Duration) {},
	}
}

func successBody(content string) string {
	return `{
		"choices": [{"finish_reason": "stop", "message": {"content": "` + content + `"}}],
		"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150,
			"prompt_tokens_details": {"cached_tokens": 20}}
	}`
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, successBody("回答"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, testConfig("gpt-4o"))
	got, err := client.GenerateAnalysis(context.Background(), "分析してください")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got != "回答" {
		t.Errorf("content = %q", got)
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}

	usage := client.LastUsage()
	if usage == nil {
		t.Fatal("usage should be recorded on success")
	}
	if usage.Input != 100 || usage.Output != 50 || usage.Total != 150 || usage.CachedInput != 20 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, testConfig("gpt-4o"))
	_, err := client.GenerateAnalysis(context.Background(), "分析してください")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// MaxRetries=3 allows 4 attempts total.
	if requests != 4 {
		t.Errorf("requests = %d, want 4", requests)
	}
	if client.LastUsage() != nil {
		t.Error("usage must stay nil on failure")
	}
}

func TestGenerateNonRetryableStatus(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"message": "bad request"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, testConfig("gpt-4o"))
	_, err := client.GenerateAnalysis(context.Background(), "分析してください")
	if err == nil {
		t.Fatal("expected error")
	}
	if requests != 1 {
		t.Errorf("non-retryable status must not be retried, requests = %d", requests)
	}
}

func TestGenerateEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices": [{"finish_reason": "stop", "message": {"content": "  "}}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, testConfig("gpt-4o"))
	_, err := client.GenerateAnalysis(context.Background(), "分析してください")
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("error = %v, want ErrEmptyContent", err)
	}
}

func TestGenerateContentFiltered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices": [{"finish_reason": "content_filter", "message": {"content": ""}}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, testConfig("gpt-4o"))
	_, err := client.GenerateAnalysis(context.Background(), "分析してください")
	if !errors.Is(err, ErrContentFiltered) {
		t.Errorf("error = %v, want ErrContentFiltered", err)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	client := newTestClient("http://unused.invalid", testConfig("gpt-4o"))
	if _, err := client.GenerateAnalysis(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestStandardFamilyRequestShape(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		io.WriteString(w, successBody("ok"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, testConfig("gpt-4o"))
	if _, err := client.GenerateAnalysis(context.Background(), "分析してください"); err != nil {
		t.Fatalf("GenerateAnalysis error: %v", err)
	}

	if body["temperature"] != 0.3 {
		t.Errorf("temperature = %v, want 0.3", body["temperature"])
	}
	if body["max_tokens"] != float64(1200) {
		t.Errorf("max_tokens = %v, want 1200", body["max_tokens"])
	}
	if _, ok := body["max_completion_tokens"]; ok {
		t.Error("standard family must not send max_completion_tokens")
	}
	messages := body["messages"].([]interface{})
	if len(messages) != 1 {
		t.Errorf("messages = %d, want 1 (no system message)", len(messages))
	}
}

func TestConstrainedFamilyRequestShape(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		io.WriteString(w, successBody("ok"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, testConfig("gpt-5-mini"))
	longPrompt := strings.Repeat("あ", 12000)
	if _, err := client.GenerateArticle(context.Background(), longPrompt); err != nil {
		t.Fatalf("GenerateArticle error: %v", err)
	}

	if _, ok := body["temperature"]; ok {
		t.Error("constrained family must not send temperature")
	}
	if body["max_completion_tokens"] != float64(12000) {
		t.Errorf("max_completion_tokens = %v, want 12000", body["max_completion_tokens"])
	}
	messages := body["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(messages))
	}
	user := messages[1].(map[string]interface{})["content"].(string)
	if !strings.Contains(user, "[中間部分省略]") {
		t.Error("over-budget prompt should be truncated with the omission marker")
	}
	if n := utf8.RuneCountInString(user); n >= 12000 {
		t.Errorf("truncated prompt length = %d runes, should be under budget", n)
	}
}

func TestGenerateLenientDecode(t *testing.T) {
	// Trailing comma is invalid JSON; the repair path should recover it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices": [{"finish_reason": "stop", "message": {"content": "ok"},}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, testConfig("gpt-4o"))
	got, err := client.GenerateAnalysis(context.Background(), "分析してください")
	if err != nil {
		t.Fatalf("lenient decode failed: %v", err)
	}
	if got != "ok" {
		t.Errorf("content = %q", got)
	}
}

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New(context.Background(), "claude", testConfig("gpt-4o"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	if !strings.Contains(err.Error(), "unsupported AI provider") {
		t.Errorf("error = %v", err)
	}
}

func TestMockClientCapabilities(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	analysis, err := client.GenerateAnalysis(ctx, "p")
	if err != nil || analysis == "" {
		t.Errorf("analysis = %q, err = %v", analysis, err)
	}
	summary, err := client.GenerateSummary(ctx, "p")
	if err != nil || summary == "" {
		t.Errorf("summary = %q, err = %v", summary, err)
	}
	art, err := client.GenerateArticle(ctx, "p")
	if err != nil || art == "" {
		t.Errorf("article = %q, err = %v", art, err)
	}
	if client.ModelName() != "mock" {
		t.Errorf("model = %q", client.ModelName())
	}
	if usage := client.LastUsage(); usage == nil || usage.Total != 0 {
		t.Errorf("mock usage should be zeroed, got %+v", usage)
	}
}
