package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackzampolin/docextract/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(config.LogCfg{Level: "info", Format: "json"}, &buf)
		if err != nil {
			t.Fatal(err)
		}
		logger.Debug("hidden")
		logger.Info("extraction complete", "req_id", "r1")

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("output is not one JSON line: %q", buf.String())
		}
		if line["msg"] != "extraction complete" || line["req_id"] != "r1" {
			t.Errorf("line = %v", line)
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(config.LogCfg{Level: "debug"}, &buf)
		if err != nil {
			t.Fatal(err)
		}
		logger.Debug("page", "n", 2)
		if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "n=2") {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("bad_format", func(t *testing.T) {
		if _, err := New(config.LogCfg{Format: "xml"}, &bytes.Buffer{}); err == nil {
			t.Error("New() expected error for unknown format")
		}
	})
}
