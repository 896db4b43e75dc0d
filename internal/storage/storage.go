// Package storage provides the local key/value store that templates and
// settings persist into. Values are opaque strings (JSON documents in
// practice); every write replaces the whole value for a key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"unicode"
)

// Well-known keys.
const (
	KeyTemplates = "extractionTemplates"
	KeySettings  = "extractionSettings"
)

// Drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// ErrInvalidKey is returned when a key contains invalid characters.
var ErrInvalidKey = errors.New("invalid storage key")

// Storage is a string-valued key/value store.
// Reading a missing key returns ("", false, nil).
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Close() error
}

// ValidateKey checks a key contains only letters, digits, dots, underscores and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	return nil
}

// Open returns the store for driver. path is the JSON file for the file
// driver and the database file for sqlite; it is ignored for memory.
func Open(driver, path string) (Storage, error) {
	switch driver {
	case "", DriverFile:
		return NewFileStorage(path), nil
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
