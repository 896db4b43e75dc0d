package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/docextract/internal/apperr"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Request defaults used when a form leaves them empty.
const (
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.3
)

// ErrUnsupportedProvider is returned by New for an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// VisionClient sends one page image plus a prompt to a vision model and
// returns the JSON it extracted.
type VisionClient interface {
	// Name returns the client identifier (e.g., "openai").
	Name() string

	// Extract sends a single page.
	Extract(ctx context.Context, req *PageRequest) (*PageResult, error)
}

// Factory builds a VisionClient for one extraction request.
type Factory func(cfg Config) (VisionClient, error)

// Config describes the provider settings of one extraction request.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int

	// Azure only
	AzureEndpoint   string
	AzureDeployment string
	APIVersion      string

	MaxRetries int           // SDK transport retries
	Timeout    time.Duration // HTTP timeout per call
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// Validate checks the provider name and, for Azure, that endpoint,
// deployment and API version are all present.
func (c Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case ProviderOpenAI:
		return nil
	case ProviderAzure:
		if c.AzureEndpoint == "" || c.AzureDeployment == "" || c.APIVersion == "" {
			return apperr.Validation("api_provider", "Azure OpenAI requires endpoint, deployment name, and API version")
		}
		return nil
	default:
		return &apperr.ValidationError{
			Field:   "api_provider",
			Message: fmt.Sprintf("unsupported provider %q", c.Provider),
			Cause:   ErrUnsupportedProvider,
		}
	}
}

// PageRequest is one page sent to the model.
type PageRequest struct {
	Prompt string
	// Image is the encoded page; MIMEType defaults to image/jpeg.
	Image    []byte
	MIMEType string

	// Schema, when set, validates the model output. SchemaText is shown to
	// the model if its output has to be repaired.
	Schema     *jsonschema.Schema
	SchemaText json.RawMessage

	RequestID string
}

// PageResult is the model's answer for one page.
type PageResult struct {
	Content    string
	ParsedJSON json.RawMessage

	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64

	ModelUsed     string
	RequestID     string
	Attempts      int
	ExecutionTime time.Duration
}

// StructuredOutputError is returned when the model never produced JSON
// that parsed and matched the schema.
type StructuredOutputError struct {
	Content string
	Cause   error
}

func (e *StructuredOutputError) Error() string {
	return fmt.Sprintf("could not parse valid JSON from response: %v", e.Cause)
}

func (e *StructuredOutputError) Unwrap() error { return e.Cause }

// New is the default Factory: it validates cfg and returns an OpenAI or
// Azure OpenAI client.
func New(cfg Config) (VisionClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewOpenAIClient(cfg), nil
}
