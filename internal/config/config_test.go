package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Client.ServerURL != "http://localhost:8000" {
		t.Errorf("unexpected default server URL %q", cfg.Client.ServerURL)
	}
	if cfg.Server.PDFDPI != 300 {
		t.Errorf("expected 300 DPI default, got %d", cfg.Server.PDFDPI)
	}
	if _, ok := cfg.PriceFor("gpt-4o"); !ok {
		t.Error("expected default pricing for gpt-4o")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_PriceFor(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		model string
		want  string
		ok    bool
	}{
		{"gpt-4o", "gpt-4o", true},
		{"gpt-4o-mini-2024-07-18", "gpt-4o-mini", true},
		{"GPT-4o-2024-08-06", "gpt-4o", true},
		{"gpt-4.1-mini", "gpt-4.1-mini", true},
		{"claude-3", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, ok := cfg.PriceFor(tt.model)
			if ok != tt.ok || got.Model != tt.want {
				t.Errorf("PriceFor(%q) = %q, %v; want %q, %v", tt.model, got.Model, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	if got := (ClientCfg{RetryDelay: "500ms"}).RetryDelayDuration(); got != 500*time.Millisecond {
		t.Errorf("RetryDelayDuration() = %v", got)
	}
	if got := (ClientCfg{RetryDelay: "soon"}).RetryDelayDuration(); got != 2*time.Second {
		t.Errorf("invalid RetryDelay should fall back, got %v", got)
	}
	if got := (ServerCfg{}).ProviderTimeoutDuration(); got != 5*time.Minute {
		t.Errorf("ProviderTimeoutDuration() = %v", got)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
client:
  server_url: "http://extract.internal:9000"
storage:
  driver: sqlite
pricing:
  - model: gpt-4.1
    input_per_1m: 2
    output_per_1m: 8
`)

		mgr, err := NewManager(configFile, "")
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Client.ServerURL != "http://extract.internal:9000" {
			t.Errorf("expected configured server URL, got %s", cfg.Client.ServerURL)
		}
		if cfg.Storage.Driver != "sqlite" {
			t.Errorf("expected sqlite driver, got %s", cfg.Storage.Driver)
		}
		if cfg.Server.Port != "8000" {
			t.Errorf("expected default port to survive partial file, got %s", cfg.Server.Port)
		}
		if len(cfg.Pricing) != 1 || cfg.Pricing[0].OutputPer1M != 8 {
			t.Errorf("unexpected pricing %+v", cfg.Pricing)
		}
	})

	t.Run("missing file in home is not an error", func(t *testing.T) {
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().Log.Level != "info" {
			t.Errorf("expected default log level, got %s", mgr.Get().Log.Level)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("DOCEXTRACT_CLIENT_SERVER_URL", "http://from-env:1234")

		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Client.ServerURL; got != "http://from-env:1234" {
			t.Errorf("expected env override, got %s", got)
		}
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		configFile := writeConfig(t, "client: [unterminated")
		if _, err := NewManager(configFile, ""); err == nil {
			t.Error("expected error for malformed config")
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "log:\n  level: debug\n"), "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
server:
  max_concurrent_files: 2
`)

	mgr, err := NewManager(configFile, "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if got := mgr.Get().Server.MaxConcurrentFiles; got != 2 {
		t.Fatalf("initial value mismatch: expected 2, got %d", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Int64
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int64(cfg.Server.MaxConcurrentFiles))
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("server:\n  max_concurrent_files: 8\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Server.MaxConcurrentFiles; got != 8 {
		t.Errorf("config not updated: expected 8, got %d", got)
	}
	if got := lastValue.Load(); got != 8 {
		t.Errorf("callback received wrong value: expected 8, got %d", got)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	mgr, err := NewManager(path, "")
	if err != nil {
		t.Fatalf("written default config does not load: %v", err)
	}
	cfg := mgr.Get()
	if cfg.Server.PDFMode != "stitch" || len(cfg.Pricing) != len(DefaultConfig().Pricing) {
		t.Errorf("unexpected config after round trip: %+v", cfg)
	}
}
