package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the docextract home directory.
	DefaultDirName = ".docextract"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// EditorDirName holds the persisted schema and prompt editor buffers.
	EditorDirName = "editor"
)

// Dir represents the docextract home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.docextract).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// StoragePath returns the key-value store location for the given driver.
// "sqlite" maps to storage.db, everything else to storage.json.
func (d *Dir) StoragePath(driver string) string {
	if driver == "sqlite" {
		return filepath.Join(d.path, "storage.db")
	}
	return filepath.Join(d.path, "storage.json")
}

// EditorDir returns the directory holding the editor buffers.
func (d *Dir) EditorDir() string {
	return filepath.Join(d.path, EditorDirName)
}

// SchemaPath returns the file backing the schema editor.
func (d *Dir) SchemaPath() string {
	return filepath.Join(d.EditorDir(), "schema.json")
}

// PromptPath returns the file backing the prompt box.
func (d *Dir) PromptPath() string {
	return filepath.Join(d.EditorDir(), "prompt.txt")
}

// ExportsDir returns the directory for exported results.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, "exports")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Creating the editor directory also creates the parent
	if err := os.MkdirAll(d.EditorDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create editor directory: %w", err)
	}
	if err := os.MkdirAll(d.ExportsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create exports directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
