package config

import (
	"strings"
	"time"
)

// Config holds docextract configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Client  ClientCfg    `mapstructure:"client" yaml:"client"`
	Storage StorageCfg   `mapstructure:"storage" yaml:"storage"`
	Server  ServerCfg    `mapstructure:"server" yaml:"server"`
	Pricing []ModelPrice `mapstructure:"pricing" yaml:"pricing"`
	Log     LogCfg       `mapstructure:"log" yaml:"log"`
}

// ClientCfg configures the CLI side that submits extraction requests.
type ClientCfg struct {
	ServerURL  string `mapstructure:"server_url" yaml:"server_url"`
	Retries    int    `mapstructure:"retries" yaml:"retries"`         // 0 = single attempt
	RetryDelay string `mapstructure:"retry_delay" yaml:"retry_delay"` // Go duration, e.g. "2s"
}

// StorageCfg selects where templates and settings are persisted.
type StorageCfg struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "file" or "sqlite"
	Path   string `mapstructure:"path" yaml:"path"`     // Empty = inside the home directory
}

// ServerCfg configures `docextract serve`.
type ServerCfg struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               string `mapstructure:"port" yaml:"port"`
	MaxConcurrentFiles int    `mapstructure:"max_concurrent_files" yaml:"max_concurrent_files"`
	MaxUploadMB        int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	PDFDPI             int    `mapstructure:"pdf_dpi" yaml:"pdf_dpi"`
	PDFMode            string `mapstructure:"pdf_mode" yaml:"pdf_mode"` // "stitch" or "pages"
	ProviderRetries    int    `mapstructure:"provider_retries" yaml:"provider_retries"`
	ProviderTimeout    string `mapstructure:"provider_timeout" yaml:"provider_timeout"`
	RequestsPerMinute  int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"` // 0 = unlimited
}

// ModelPrice is the USD cost per one million tokens for models whose name
// starts with Model.
type ModelPrice struct {
	Model       string  `mapstructure:"model" yaml:"model"`
	InputPer1M  float64 `mapstructure:"input_per_1m" yaml:"input_per_1m"`
	OutputPer1M float64 `mapstructure:"output_per_1m" yaml:"output_per_1m"`
}

// LogCfg configures slog output.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientCfg{
			ServerURL:  "http://localhost:8000",
			Retries:    0,
			RetryDelay: "2s",
		},
		Storage: StorageCfg{
			Driver: "file",
		},
		Server: ServerCfg{
			Host:               "127.0.0.1",
			Port:               "8000",
			MaxConcurrentFiles: 4,
			MaxUploadMB:        100,
			PDFDPI:             300,
			PDFMode:            "stitch",
			ProviderRetries:    2,
			ProviderTimeout:    "5m",
			RequestsPerMinute:  0,
		},
		Pricing: []ModelPrice{
			{Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60},
			{Model: "gpt-4o", InputPer1M: 2.50, OutputPer1M: 10.00},
			{Model: "gpt-4.1-nano", InputPer1M: 0.10, OutputPer1M: 0.40},
			{Model: "gpt-4.1-mini", InputPer1M: 0.40, OutputPer1M: 1.60},
			{Model: "gpt-4.1", InputPer1M: 2.00, OutputPer1M: 8.00},
			{Model: "gpt-4-turbo", InputPer1M: 10.00, OutputPer1M: 30.00},
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
	}
}

// RetryDelayDuration parses RetryDelay, falling back to two seconds.
func (c ClientCfg) RetryDelayDuration() time.Duration {
	return parseDuration(c.RetryDelay, 2*time.Second)
}

// ProviderTimeoutDuration parses ProviderTimeout, falling back to five minutes.
func (c ServerCfg) ProviderTimeoutDuration() time.Duration {
	return parseDuration(c.ProviderTimeout, 5*time.Minute)
}

// PriceFor returns the price entry with the longest model prefix matching model.
func (c *Config) PriceFor(model string) (ModelPrice, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	var best ModelPrice
	found := false
	for _, p := range c.Pricing {
		prefix := strings.ToLower(p.Model)
		if prefix == "" || !strings.HasPrefix(model, prefix) {
			continue
		}
		if !found || len(prefix) > len(best.Model) {
			best = p
			found = true
		}
	}
	return best, found
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
