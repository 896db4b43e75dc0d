package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a VisionClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	// Respond, when set, overrides ResponseText per request.
	Respond func(req *PageRequest) string

	PromptTokens     int64
	CompletionTokens int64

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []PageRequest
	configs      []Config
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:          time.Millisecond,
		ResponseText:     `{"mock": true}`,
		PromptTokens:     1000,
		CompletionTokens: 100,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Factory returns a Factory that validates cfg like New and then hands out c.
func (c *MockClient) Factory() Factory {
	return func(cfg Config) (VisionClient, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.configs = append(c.configs, cfg)
		c.mu.Unlock()
		return c, nil
	}
}

// Extract returns the configured response, parsed like a real reply.
func (c *MockClient) Extract(ctx context.Context, req *PageRequest) (*PageResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	// Simulate latency
	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	content := c.ResponseText
	if c.Respond != nil {
		content = c.Respond(req)
	}

	result := &PageResult{
		Content:          content,
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.CompletionTokens,
		TotalTokens:      c.PromptTokens + c.CompletionTokens,
		ModelUsed:        MockClientName,
		RequestID:        req.RequestID,
		Attempts:         1,
	}

	parsed, err := parseStructuredJSON(content)
	if err == nil && req.Schema != nil {
		err = validateStructuredJSON(req.Schema, parsed)
	}
	result.ExecutionTime = time.Since(start)
	if err != nil {
		return result, &StructuredOutputError{Content: content, Cause: err}
	}
	result.ParsedJSON = parsed
	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every page request received.
func (c *MockClient) Requests() []PageRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PageRequest(nil), c.requests...)
}

// Configs returns every Config passed to the Factory.
func (c *MockClient) Configs() []Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Config(nil), c.configs...)
}

// Verify interface
var _ VisionClient = (*MockClient)(nil)
