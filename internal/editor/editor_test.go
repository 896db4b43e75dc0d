package editor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/docextract/internal/schema"
)

func TestFile_InitialValue(t *testing.T) {
	dir := t.TempDir()

	t.Run("schema buffer starts with default", func(t *testing.T) {
		e := NewSchema(filepath.Join(dir, "schema.json"))
		if e.GetValue() != schema.Default() {
			t.Error("expected default schema before first write")
		}
	})

	t.Run("prompt buffer starts empty", func(t *testing.T) {
		e := NewPrompt(filepath.Join(dir, "prompt.txt"))
		if e.GetValue() != "" {
			t.Errorf("expected empty prompt, got %q", e.GetValue())
		}
	})
}

func TestFile_SetValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "schema.json")
	e := NewSchema(path)

	if err := e.SetValue(`{"a":{"type":"str"}}`); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if got := e.GetValue(); got != `{"a":{"type":"str"}}` {
		t.Errorf("GetValue() = %q", got)
	}

	// A second buffer over the same file sees the write.
	if got := NewSchema(path).GetValue(); got != `{"a":{"type":"str"}}` {
		t.Errorf("value not persisted, got %q", got)
	}

	// Empty text is a real value, distinct from "never written".
	if err := e.SetValue(""); err != nil {
		t.Fatalf("SetValue(\"\") error = %v", err)
	}
	if got := e.GetValue(); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
}

func TestFile_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	e := NewSchema(path)

	if err := e.Clear(); err != nil {
		t.Fatalf("Clear() on missing file error = %v", err)
	}
	if err := e.SetValue("{}"); err != nil {
		t.Fatal(err)
	}
	if err := e.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected backing file to be removed")
	}
	if e.GetValue() != schema.Default() {
		t.Error("expected default schema after Clear")
	}
}

func TestReset(t *testing.T) {
	e := NewSchema(filepath.Join(t.TempDir(), "schema.json"))
	if err := e.SetValue("{broken"); err != nil {
		t.Fatal(err)
	}
	if err := schema.Reset(e); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if e.GetValue() != schema.Default() {
		t.Error("expected default schema after Reset")
	}
}
