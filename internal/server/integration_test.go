package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/docextract/internal/apperr"
	"github.com/jackzampolin/docextract/internal/config"
	"github.com/jackzampolin/docextract/internal/extraction"
	"github.com/jackzampolin/docextract/internal/providers"
	"github.com/jackzampolin/docextract/internal/settings"
	"github.com/jackzampolin/docextract/internal/testutil"
)

type testServerOptions struct {
	mock     *providers.MockClient
	renderer testutil.PageRenderer
	yaml     string // optional config file contents
	watch    bool
}

// startTestServer runs a server on a free port with the mock provider.
func startTestServer(t *testing.T, opts testServerOptions) (*Server, string) {
	t.Helper()

	cfg := testutil.NewServerConfig(t)
	var cm *config.Manager
	if opts.yaml != "" {
		cfg.WriteConfig(t, opts.yaml)
		var err error
		cm, err = config.NewManager(cfg.ConfigFile, cfg.HomeDir)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cm.SetLogger(cfg.Logger)
		if opts.watch {
			cm.WatchConfig()
		}
	}
	if opts.mock == nil {
		opts.mock = providers.NewMockClient()
	}

	srv, err := New(Config{
		Host:          cfg.Host,
		Port:          "0",
		ConfigManager: cm,
		Logger:        cfg.Logger,
		Factory:       opts.mock.Factory(),
		Renderer:      opts.renderer,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startInBackground(t, srv)
	return srv, serverURL(t, srv)
}

func pngBlob(t *testing.T, name string) extraction.Blob {
	return extraction.BytesBlob(name, testutil.PNG(t, 4, 4))
}

func submit(t *testing.T, url string, files []extraction.Blob, prompt string, s settings.Settings, schemaText *string) (*extraction.Result, error) {
	t.Helper()
	req, err := extraction.Build(files, prompt, s, schemaText)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return extraction.NewClient(url).Submit(t.Context(), req)
}

// postForm sends a hand-built multipart form, bypassing client-side checks.
func postForm(t *testing.T, url string, fields map[string]string, files map[string][]byte, header http.Header) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		w, err := mw.CreateFormFile(extraction.FieldFiles, name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url+extraction.Path, &body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e.Error
}

func TestExtract_OpenAI(t *testing.T) {
	mock := providers.NewMockClient()
	_, url := startTestServer(t, testServerOptions{mock: mock})

	files := []extraction.Blob{
		pngBlob(t, "a.png"),
		extraction.BytesBlob("notes.txt", []byte("skip me")),
		pngBlob(t, "b.jpg"),
	}
	s := settings.Settings{APIKey: "sk-test", Model: "gpt-4o", Temperature: 0.2}
	res, err := submit(t, url, files, "", s, nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	data, ok := res.Data.([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("Data = %#v, want two records", res.Data)
	}
	if rec, _ := data[0].(map[string]any); rec["mock"] != true {
		t.Errorf("record = %v, want mock: true", data[0])
	}

	u := res.Usage
	if u.FileCount != 2 || u.SuccessfulExtractions != 2 {
		t.Errorf("FileCount = %d, SuccessfulExtractions = %d, want 2 and 2", u.FileCount, u.SuccessfulExtractions)
	}
	if u.Files[0].FileName != "a.png" || u.Files[1].FileName != "b.jpg" {
		t.Errorf("file order = %q, %q", u.Files[0].FileName, u.Files[1].FileName)
	}
	// 1000 prompt + 100 completion tokens per page at gpt-4o prices.
	if u.TotalCost != 0.007 {
		t.Errorf("TotalCost = %v, want 0.007", u.TotalCost)
	}
	if m := u.Files[0].PageMetrics; len(m) != 1 || m[0].TotalTokens != 1100 {
		t.Errorf("PageMetrics = %+v", m)
	}

	cfg := mock.Configs()[0]
	if cfg.Provider != "openai" || cfg.APIKey != "sk-test" || cfg.Temperature != 0.2 || cfg.MaxTokens != 2048 {
		t.Errorf("provider config = %+v", cfg)
	}
	if !strings.Contains(mock.Requests()[0].Prompt, "JSON") {
		t.Errorf("generic prompt not used: %q", mock.Requests()[0].Prompt)
	}
}

func TestExtract_WithSchema(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "```json\n{\"invoice_total\": 12.5, \"vendor\": null}\n```"
	_, url := startTestServer(t, testServerOptions{mock: mock})

	schemaText := `{"invoice_total": {"type": "float", "description": "Grand total"}, "vendor": {"type": "str", "description": "Seller"}}`
	res, err := submit(t, url, []extraction.Blob{pngBlob(t, "inv.png")}, "", settings.Settings{APIKey: "k"}, &schemaText)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	rec := res.Data.([]any)[0].(map[string]any)
	if rec["invoice_total"] != 12.5 {
		t.Errorf("record = %v", rec)
	}

	req := mock.Requests()[0]
	if req.Schema == nil {
		t.Error("schema not compiled for provider request")
	}
	if !strings.Contains(req.Prompt, "- invoice_total: Grand total") {
		t.Errorf("prompt = %q, want schema field descriptions", req.Prompt)
	}
}

func TestExtract_CustomPrompt(t *testing.T) {
	mock := providers.NewMockClient()
	_, url := startTestServer(t, testServerOptions{mock: mock})

	if _, err := submit(t, url, []extraction.Blob{pngBlob(t, "a.png")}, "the due date", settings.Settings{APIKey: "k"}, nil); err != nil {
		t.Fatal(err)
	}
	want := "Extract the following information from the image and return it in JSON format: the due date"
	if got := mock.Requests()[0].Prompt; got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
}

func TestExtract_FileFailure(t *testing.T) {
	_, url := startTestServer(t, testServerOptions{
		renderer: testutil.PageRenderer{Pages: 1, Fail: map[string]bool{"bad.png": true}},
	})

	files := []extraction.Blob{pngBlob(t, "good.png"), pngBlob(t, "bad.png")}
	res, err := submit(t, url, files, "", settings.Settings{APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	u := res.Usage
	if u.FileCount != 2 || u.SuccessfulExtractions != 1 {
		t.Errorf("FileCount = %d, SuccessfulExtractions = %d, want 2 and 1", u.FileCount, u.SuccessfulExtractions)
	}
	bad := u.Files[1]
	if bad.FileName != "bad.png" || bad.Error == "" || bad.TotalCost != 0 {
		t.Errorf("failed file usage = %+v", bad)
	}
}

func TestExtract_PagesMode(t *testing.T) {
	mock := providers.NewMockClient()
	_, url := startTestServer(t, testServerOptions{
		mock:     mock,
		renderer: testutil.PageRenderer{Pages: 3},
		yaml:     "server:\n  pdf_mode: pages\n",
	})

	res, err := submit(t, url, []extraction.Blob{extraction.BytesBlob("doc.pdf", []byte("%PDF"))}, "", settings.Settings{APIKey: "k"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Usage.SuccessfulExtractions != 3 || res.Usage.Files[0].PageCount != 3 {
		t.Errorf("usage = %+v, want three page records", res.Usage)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("provider calls = %d, want 3", mock.RequestCount())
	}
}

func TestExtract_BadRequests(t *testing.T) {
	_, url := startTestServer(t, testServerOptions{})
	png := testutil.PNG(t, 2, 2)

	tests := []struct {
		name    string
		fields  map[string]string
		files   map[string][]byte
		want    int
		message string
	}{
		{
			name:    "no_supported_files",
			files:   map[string][]byte{"notes.txt": []byte("x"), "sheet.xlsx": []byte("y")},
			want:    http.StatusBadRequest,
			message: "No valid PDF or image files were uploaded",
		},
		{
			name:    "no_files",
			want:    http.StatusBadRequest,
			message: "No valid PDF or image files were uploaded",
		},
		{
			name:    "invalid_schema",
			fields:  map[string]string{"schema_definition": `{"a": `},
			files:   map[string][]byte{"a.png": png},
			want:    http.StatusBadRequest,
			message: "Invalid schema_definition",
		},
		{
			name:    "invalid_temperature",
			fields:  map[string]string{"temperature": "warm"},
			files:   map[string][]byte{"a.png": png},
			want:    http.StatusBadRequest,
			message: "invalid temperature",
		},
		{
			name:    "unknown_provider",
			fields:  map[string]string{"api_provider": "anthropic"},
			files:   map[string][]byte{"a.png": png},
			want:    http.StatusBadRequest,
			message: "unsupported provider",
		},
		{
			name:    "incomplete_azure",
			fields:  map[string]string{"api_provider": "azure", "azure_endpoint": "https://x.openai.azure.com"},
			files:   map[string][]byte{"a.png": png},
			want:    http.StatusBadRequest,
			message: "Azure OpenAI requires endpoint, deployment name, and API version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postForm(t, url, tt.fields, tt.files, nil)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if msg := errorMessage(t, resp); !strings.Contains(msg, tt.message) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.message)
			}
		})
	}
}

func TestExtract_ClientSeesHTTPError(t *testing.T) {
	_, url := startTestServer(t, testServerOptions{})

	s := settings.Settings{APIProvider: settings.ProviderAzure, APIKey: "k"}
	_, err := submit(t, url, []extraction.Blob{pngBlob(t, "a.png")}, "", s, nil)
	var httpErr *apperr.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Submit() error = %v, want *apperr.HTTPError", err)
	}
	if httpErr.Status != http.StatusBadRequest || !strings.Contains(httpErr.Detail, "Azure") {
		t.Errorf("HTTPError = %+v", httpErr)
	}
	if apperr.IsRetryable(err) {
		t.Error("400 must not be retryable")
	}
}

func TestExtract_RequestID(t *testing.T) {
	mock := providers.NewMockClient()
	_, url := startTestServer(t, testServerOptions{mock: mock})

	header := http.Header{extraction.RequestIDHeader: []string{"req-123"}}
	resp := postForm(t, url, nil, map[string][]byte{"a.png": testutil.PNG(t, 2, 2)}, header)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get(extraction.RequestIDHeader); got != "req-123" {
		t.Errorf("response %s = %q, want req-123", extraction.RequestIDHeader, got)
	}
	if got := mock.Requests()[0].RequestID; got != "req-123" {
		t.Errorf("provider RequestID = %q, want req-123", got)
	}
}

func TestExtract_UploadLimit(t *testing.T) {
	_, url := startTestServer(t, testServerOptions{yaml: "server:\n  max_upload_mb: 1\n"})

	big := bytes.Repeat([]byte{0}, 2<<20)
	resp := postForm(t, url, nil, map[string][]byte{"big.png": big}, nil)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestStatus_RateLimiter(t *testing.T) {
	_, url := startTestServer(t, testServerOptions{yaml: "server:\n  requests_per_minute: 60\n"})

	if _, err := submit(t, url, []extraction.Blob{pngBlob(t, "a.png")}, "", settings.Settings{APIKey: "k"}, nil); err != nil {
		t.Fatal(err)
	}
	status, err := testutil.GetStatus(url)
	if err != nil {
		t.Fatal(err)
	}
	if status.RateLimit == nil || status.RateLimit.TokensLimit != 60 || status.RateLimit.TotalConsumed != 1 {
		t.Errorf("RateLimit = %+v, want limit 60 with one call consumed", status.RateLimit)
	}
	if !strings.HasSuffix(status.ConfigFile, "config.yaml") {
		t.Errorf("ConfigFile = %q", status.ConfigFile)
	}
}

func TestConfig_HotReload(t *testing.T) {
	srv, url := startTestServer(t, testServerOptions{
		yaml:  "server:\n  max_concurrent_files: 2\n",
		watch: true,
	})
	status, err := testutil.GetStatus(url)
	if err != nil {
		t.Fatal(err)
	}
	if status.MaxConcurrentFiles != 2 {
		t.Fatalf("MaxConcurrentFiles = %d, want 2", status.MaxConcurrentFiles)
	}

	if err := writeFile(status.ConfigFile, "server:\n  max_concurrent_files: 9\n"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Runner().ServerConfig().MaxConcurrentFiles == 9 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("MaxConcurrentFiles = %d after reload, want 9", srv.Runner().ServerConfig().MaxConcurrentFiles)
}
