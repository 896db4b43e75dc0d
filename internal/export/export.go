// Package export writes extraction results to disk as JSON, XLSX or MessagePack.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jackzampolin/docextract/internal/extraction"
)

// Format is an export file format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatXLSX    Format = "xlsx"
	FormatMsgpack Format = "msgpack"
)

// DefaultFileName is the name used when no export path is given.
const DefaultFileName = "extraction_results.json"

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXLSX, FormatMsgpack:
		return f, nil
	case "mpk", "msgp":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("unknown export format %q (expected json, xlsx or msgpack)", s)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer export format from %q", path)
	}
	return ParseFormat(ext)
}

// Write encodes res to w. JSON holds only the extracted data; XLSX holds
// data and usage sheets; MessagePack holds the full result.
func Write(w io.Writer, format Format, res *extraction.Result) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Data)
	case FormatXLSX:
		return writeXLSX(w, res)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(res)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile writes res to path in the format implied by its extension.
func WriteFile(path string, res *extraction.Result) (Format, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := Write(f, format, res); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s export: %w", format, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return format, nil
}

// ReadMsgpack decodes a MessagePack export.
func ReadMsgpack(r io.Reader) (*extraction.Result, error) {
	var res extraction.Result
	if err := msgpack.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode msgpack export: %w", err)
	}
	return &res, nil
}
