package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/docextract/internal/apperr"
)

func chatCompletion(content string, prompt, completion int64) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-2024-08-06",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	})
	return string(body)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"openai", Config{Provider: "openai"}, false},
		{"openai mixed case", Config{Provider: "OpenAI"}, false},
		{"azure complete", Config{Provider: "azure", AzureEndpoint: "https://x", AzureDeployment: "d", APIVersion: "v"}, false},
		{"azure missing version", Config{Provider: "azure", AzureEndpoint: "https://x", AzureDeployment: "d"}, true},
		{"unknown", Config{Provider: "anthropic"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := New(Config{Provider: "anthropic"}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("New() expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestOpenAIClient_Extract(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletion("```json\n{\"invoice_number\": \"INV-9\"}\n```", 1200, 80)))
	}))
	defer server.Close()

	client, err := New(Config{
		Provider:    "openai",
		APIKey:      "test-key",
		Model:       "gpt-4o",
		Temperature: 0.3,
		MaxTokens:   2048,
		BaseURL:     server.URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := client.Extract(t.Context(), &PageRequest{Prompt: "Extract it", Image: []byte{0xff, 0xd8}})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if string(result.ParsedJSON) != `{"invoice_number":"INV-9"}` {
		t.Errorf("ParsedJSON = %s", result.ParsedJSON)
	}
	if result.PromptTokens != 1200 || result.CompletionTokens != 80 || result.TotalTokens != 1280 {
		t.Errorf("unexpected token counts %+v", result)
	}

	if payload["model"] != "gpt-4o" || payload["max_tokens"] != float64(2048) {
		t.Errorf("unexpected payload %v", payload)
	}
	msgs := payload["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	if parts[0].(map[string]any)["text"] != "Extract it" {
		t.Errorf("unexpected text part %v", parts[0])
	}
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	if !strings.HasPrefix(image["url"].(string), "data:image/jpeg;base64,") || image["detail"] != "high" {
		t.Errorf("unexpected image part %v", image)
	}
}

func TestOpenAIClient_RepairsInvalidOutput(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := "I could not read the total."
		if calls.Add(1) > 1 {
			content = `{"total": 42}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletion(content, 100, 10)))
	}))
	defer server.Close()

	schema, err := CompileSchema(json.RawMessage(`{"type":"object","properties":{"total":{"type":["number","null"]}}}`))
	if err != nil {
		t.Fatal(err)
	}

	client := NewOpenAIClient(Config{Provider: "openai", APIKey: "k", BaseURL: server.URL})
	result, err := client.Extract(t.Context(), &PageRequest{Prompt: "p", Image: []byte{1}, Schema: schema})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Attempts != 2 || result.TotalTokens != 220 {
		t.Errorf("expected 2 attempts with summed usage, got %+v", result)
	}
}

func TestOpenAIClient_GivesUpAfterRepairs(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletion("still not json", 10, 1)))
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{Provider: "openai", APIKey: "k", BaseURL: server.URL})
	_, err := client.Extract(t.Context(), &PageRequest{Prompt: "p", Image: []byte{1}})

	var soErr *StructuredOutputError
	if !errors.As(err, &soErr) {
		t.Fatalf("expected StructuredOutputError, got %v", err)
	}
	if calls.Load() != maxStructuredRepairAttempts+1 {
		t.Errorf("expected %d calls, got %d", maxStructuredRepairAttempts+1, calls.Load())
	}
}

func TestOpenAIClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{Provider: "openai", APIKey: "k", BaseURL: server.URL, MaxRetries: 0})
	_, err := client.Extract(t.Context(), &PageRequest{Prompt: "p", Image: []byte{1}})

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rlErr.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want 3s", rlErr.RetryAfter)
	}
}

func TestOpenAIClient_Azure(t *testing.T) {
	var path, apiVersion, apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiVersion = r.URL.Query().Get("api-version")
		apiKey = r.Header.Get("Api-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletion(`{"ok": true}`, 1, 1)))
	}))
	defer server.Close()

	client, err := New(Config{
		Provider:        "azure",
		APIKey:          "azure-key",
		AzureEndpoint:   server.URL,
		AzureDeployment: "vision-prod",
		APIVersion:      "2024-06-01",
	})
	if err != nil {
		t.Fatal(err)
	}
	if client.Name() != ProviderAzure {
		t.Errorf("Name() = %s", client.Name())
	}

	if _, err := client.Extract(t.Context(), &PageRequest{Prompt: "p", Image: []byte{1}}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(path, "/openai/deployments/vision-prod/chat/completions") {
		t.Errorf("unexpected path %s", path)
	}
	if apiVersion != "2024-06-01" || apiKey != "azure-key" {
		t.Errorf("api-version=%q api-key=%q", apiVersion, apiKey)
	}
}

func TestMockClient(t *testing.T) {
	t.Run("returns parsed response", func(t *testing.T) {
		client := NewMockClient()
		client.ResponseText = `{"a": 1}`

		result, err := client.Extract(t.Context(), &PageRequest{Prompt: "p", Image: []byte{1}})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if string(result.ParsedJSON) != `{"a":1}` || result.TotalTokens != 1100 {
			t.Errorf("unexpected result %+v", result)
		}
		if client.RequestCount() != 1 || len(client.Requests()) != 1 {
			t.Errorf("request not recorded")
		}
	})

	t.Run("fail after", func(t *testing.T) {
		client := NewMockClient()
		client.FailAfter = 1

		if _, err := client.Extract(t.Context(), &PageRequest{}); err != nil {
			t.Fatalf("first request failed: %v", err)
		}
		if _, err := client.Extract(t.Context(), &PageRequest{}); err == nil {
			t.Error("second request should fail")
		}
	})

	t.Run("factory validates config", func(t *testing.T) {
		client := NewMockClient()
		factory := client.Factory()
		if _, err := factory(Config{Provider: "azure"}); err == nil {
			t.Error("expected incomplete azure config to fail")
		}
		if _, err := factory(Config{Provider: "openai", Model: "gpt-4o"}); err != nil {
			t.Fatal(err)
		}
		if cfgs := client.Configs(); len(cfgs) != 1 || cfgs[0].Model != "gpt-4o" {
			t.Errorf("unexpected configs %+v", cfgs)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows initial burst", func(t *testing.T) {
		limiter := NewRateLimiter(600)

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Fatalf("request %d failed: %v", i, err)
			}
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("took too long: %v", elapsed)
		}
	})

	t.Run("nil limiter never blocks", func(t *testing.T) {
		var limiter *RateLimiter = NewRateLimiter(0)
		if limiter != nil {
			t.Fatal("expected nil limiter for zero rate")
		}
		if err := limiter.Wait(context.Background()); err != nil {
			t.Errorf("nil limiter Wait() = %v", err)
		}
		limiter.Record429()
		_ = limiter.Status()
	})

	t.Run("record 429 drains tokens", func(t *testing.T) {
		limiter := NewRateLimiter(60)
		limiter.Record429()

		status := limiter.Status()
		if status.Last429Time.IsZero() {
			t.Error("Last429Time should be set")
		}
		if status.TokensAvailable != 0 {
			t.Errorf("expected drained bucket, got %d tokens", status.TokensAvailable)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(1)
		limiter.Wait(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := limiter.Wait(ctx); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrent requests", func(t *testing.T) {
		limiter := NewRateLimiter(6000)

		var wg sync.WaitGroup
		var errs atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := limiter.Wait(context.Background()); err != nil {
					errs.Add(1)
				}
			}()
		}
		wg.Wait()

		if errs.Load() > 0 {
			t.Errorf("had %d errors", errs.Load())
		}
		if got := limiter.Status().TotalConsumed; got != 10 {
			t.Errorf("TotalConsumed = %d, want 10", got)
		}
	})
}
