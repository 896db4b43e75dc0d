// Package editor provides file-backed text buffers for the current schema
// and the current prompt, so both survive between CLI invocations.
package editor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/docextract/internal/schema"
)

var _ schema.Editor = (*File)(nil)

// File is an editor buffer stored in a single file. Until the first
// SetValue the buffer reads as its initial value.
type File struct {
	mu      sync.RWMutex
	path    string
	initial string
}

// NewFile returns a buffer at path that reads as initial while the file
// does not exist.
func NewFile(path, initial string) *File {
	return &File{path: path, initial: initial}
}

// NewSchema returns the schema buffer, initialised with the default schema.
func NewSchema(path string) *File {
	return NewFile(path, schema.Default())
}

// NewPrompt returns the prompt buffer, initially empty.
func NewPrompt(path string) *File {
	return NewFile(path, "")
}

// Path returns the backing file.
func (f *File) Path() string {
	return f.path
}

// GetValue returns the buffer contents. Read errors other than a missing
// file also fall back to the initial value.
func (f *File) GetValue() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return f.initial
	}
	return string(data)
}

// SetValue replaces the buffer contents atomically.
func (f *File) SetValue(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create editor directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".edit-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("write buffer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close buffer: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace buffer: %w", err)
	}
	return nil
}

// Clear removes the backing file so the buffer reads as its initial value again.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear buffer: %w", err)
	}
	return nil
}
