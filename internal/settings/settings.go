// Package settings persists the API configuration used for extraction
// requests as a single JSON record under storage.KeySettings.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackzampolin/docextract/internal/apperr"
	"github.com/jackzampolin/docextract/internal/config"
	"github.com/jackzampolin/docextract/internal/storage"
)

// Provider names the backing LLM service.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderAzure  Provider = "azure"
)

// Defaults applied by WithDefaults.
const (
	DefaultModel     = "gpt-4o"
	DefaultMaxTokens = 2048
)

// Settings is the persisted API configuration. Azure fields are only sent
// when APIProvider is ProviderAzure.
type Settings struct {
	APIProvider     Provider `json:"apiProvider" yaml:"apiProvider"`
	APIKey          string   `json:"apiKey" yaml:"apiKey"`
	Model           string   `json:"model" yaml:"model"`
	Temperature     float64  `json:"temperature" yaml:"temperature"`
	MaxTokens       int      `json:"maxTokens" yaml:"maxTokens"`
	AzureEndpoint   string   `json:"azureEndpoint" yaml:"azureEndpoint"`
	AzureDeployment string   `json:"azureDeployment" yaml:"azureDeployment"`
	APIVersion      string   `json:"apiVersion" yaml:"apiVersion"`
}

// IsAzure reports whether requests go to an Azure OpenAI deployment.
func (s Settings) IsAzure() bool {
	return strings.EqualFold(string(s.APIProvider), string(ProviderAzure))
}

// CheckAzure returns a ValidationError naming the Azure fields that are
// missing. It returns nil for non-Azure providers.
func (s Settings) CheckAzure() error {
	if !s.IsAzure() {
		return nil
	}
	var missing []string
	if strings.TrimSpace(s.AzureEndpoint) == "" {
		missing = append(missing, "azureEndpoint")
	}
	if strings.TrimSpace(s.AzureDeployment) == "" {
		missing = append(missing, "azureDeployment")
	}
	if strings.TrimSpace(s.APIVersion) == "" {
		missing = append(missing, "apiVersion")
	}
	if len(missing) > 0 {
		return apperr.Validation(strings.Join(missing, ", "), "required when apiProvider is azure")
	}
	return nil
}

// ResolvedAPIKey expands ${ENV_VAR} references in the API key.
func (s Settings) ResolvedAPIKey() string {
	return config.ResolveEnvVars(s.APIKey)
}

// WithDefaults fills an empty provider, model and max tokens. Temperature
// is left alone since zero is a meaningful value.
func (s Settings) WithDefaults() Settings {
	if s.APIProvider == "" {
		s.APIProvider = ProviderOpenAI
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// UnmarshalJSON accepts temperature and maxTokens as numbers or numeric
// strings; records written by the browser form stored them as strings.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	var aux struct {
		plain
		Temperature json.RawMessage `json:"temperature"`
		MaxTokens   json.RawMessage `json:"maxTokens"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	out := Settings(aux.plain)

	temp, err := flexNumber(aux.Temperature)
	if err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	out.Temperature = temp

	maxTokens, err := flexNumber(aux.MaxTokens)
	if err != nil {
		return fmt.Errorf("maxTokens: %w", err)
	}
	out.MaxTokens = int(maxTokens)

	*s = out
	return nil
}

func flexNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return 0, nil
		}
		return strconv.ParseFloat(str, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

// Store loads and saves the settings record.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
}

// NewStore creates a settings store over s.
func NewStore(s storage.Storage) *Store {
	return &Store{storage: s}
}

// Load returns the saved settings. A missing record or missing fields
// yield zero values; only a corrupt record is an error.
func (st *Store) Load(ctx context.Context) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	raw, ok, err := st.storage.GetItem(ctx, storage.KeySettings)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if !ok || strings.TrimSpace(raw) == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Save replaces the whole record. Azure completeness is not checked here;
// see Settings.CheckAzure.
func (st *Store) Save(ctx context.Context, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.storage.SetItem(ctx, storage.KeySettings, string(data)); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
