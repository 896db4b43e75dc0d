package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

// maxStructuredRepairAttempts limits follow-up calls when the model output
// does not parse or does not match the schema.
const maxStructuredRepairAttempts = 2

// OpenAIClient implements VisionClient with the official OpenAI SDK, against
// either api.openai.com or an Azure OpenAI deployment.
type OpenAIClient struct {
	name        string
	model       string
	temperature float64
	maxTokens   int
	client      openai.Client
}

// NewOpenAIClient creates a client. cfg is not validated; use New for that.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}

	name := ProviderOpenAI
	model := cfg.Model
	if strings.EqualFold(cfg.Provider, ProviderAzure) {
		name = ProviderAzure
		// Azure routes by deployment; the SDK puts the model name in the path.
		model = cfg.AzureDeployment
		opts = append(opts,
			azure.WithEndpoint(cfg.AzureEndpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	return &OpenAIClient{
		name:        name,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Model returns the model (or Azure deployment) requests are sent to.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Extract sends the page and parses the reply as JSON. With a schema the
// reply must also validate; otherwise the model is asked to repair it.
func (c *OpenAIClient) Extract(ctx context.Context, req *PageRequest) (*PageResult, error) {
	if req == nil || len(req.Image) == 0 {
		return nil, fmt.Errorf("page image is required")
	}

	start := time.Now()
	result := &PageResult{RequestID: req.RequestID}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    imageDataURL(req.Image, req.MIMEType),
				Detail: "high",
			}),
		}),
	}

	var lastErr error
	for attempt := 0; attempt <= maxStructuredRepairAttempts; attempt++ {
		result.Attempts++
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(c.model),
			Messages:    messages,
			Temperature: openai.Float(c.temperature),
			MaxTokens:   openai.Int(int64(c.maxTokens)),
		})
		if err != nil {
			return nil, mapOpenAIError(err)
		}

		result.PromptTokens += resp.Usage.PromptTokens
		result.CompletionTokens += resp.Usage.CompletionTokens
		result.TotalTokens += resp.Usage.TotalTokens
		result.ModelUsed = resp.Model
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("%s returned no choices", c.name)
		}
		content := resp.Choices[0].Message.Content
		result.Content = content

		parsed, err := parseStructuredJSON(content)
		if err == nil && req.Schema != nil {
			err = validateStructuredJSON(req.Schema, parsed)
		}
		if err == nil {
			result.ParsedJSON = parsed
			result.ExecutionTime = time.Since(start)
			return result, nil
		}
		lastErr = err

		messages = append(messages,
			openai.AssistantMessage(content),
			openai.UserMessage(structuredRepairPrompt(req.SchemaText, content, err)),
		)
	}

	result.ExecutionTime = time.Since(start)
	return result, &StructuredOutputError{Content: result.Content, Cause: lastErr}
}

func imageDataURL(image []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// RateLimitError is returned when the provider answers 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// APIError is a non-429 error status from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("OpenAI error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("OpenAI error (status %d)", e.StatusCode)
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		return &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return err
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

var _ VisionClient = (*OpenAIClient)(nil)
