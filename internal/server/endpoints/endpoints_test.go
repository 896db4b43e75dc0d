package endpoints

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jackzampolin/docextract/internal/providers"
)

func TestProviderConfig(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		want    providers.Config
		wantErr bool
	}{
		{
			name: "defaults",
			form: url.Values{},
			want: providers.Config{
				Provider:    "openai",
				Model:       "gpt-4o",
				Temperature: 0.3,
				MaxTokens:   2048,
			},
		},
		{
			name: "azure",
			form: url.Values{
				"api_provider":     {"azure"},
				"api_key":          {"k"},
				"model":            {"gpt-4o-mini"},
				"temperature":      {"0"},
				"max_tokens":       {"512"},
				"azure_endpoint":   {"https://x.openai.azure.com"},
				"azure_deployment": {"vision"},
				"api_version":      {"2024-06-01"},
			},
			want: providers.Config{
				Provider:        "azure",
				APIKey:          "k",
				Model:           "gpt-4o-mini",
				Temperature:     0,
				MaxTokens:       512,
				AzureEndpoint:   "https://x.openai.azure.com",
				AzureDeployment: "vision",
				APIVersion:      "2024-06-01",
			},
		},
		{name: "bad_temperature", form: url.Values{"temperature": {"hot"}}, wantErr: true},
		{name: "bad_max_tokens", form: url.Values{"max_tokens": {"-5"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.form.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			got, err := providerConfig(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("providerConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("providerConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, _, handler := (&HealthEndpoint{Version: "v1.2.3"}).Route()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/health", nil))
	if body := rec.Body.String(); !strings.Contains(body, `"version":"v1.2.3"`) {
		t.Errorf("body = %s", body)
	}
}

func TestStatusEndpoint_NoRunner(t *testing.T) {
	_, _, handler := (&StatusEndpoint{}).Route()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/status", nil))
	if rec.Code != 503 {
		t.Errorf("status = %d, want 503 without services", rec.Code)
	}
}

func TestAll_Routes(t *testing.T) {
	seen := map[string]bool{}
	for _, ep := range All(Config{}) {
		method, path, _ := ep.Route()
		seen[method+" "+path] = true
		if ep.Command(func() string { return "http://localhost:8000" }) == nil {
			t.Errorf("%s %s has no command", method, path)
		}
	}
	for _, want := range []string{"GET /health", "GET /status", "POST /api/extract/files"} {
		if !seen[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}
