package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format for CLI commands.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

// DefaultOutput is the default output format.
const DefaultOutput = OutputFormatYAML

// globalOutputFormat is set by the root command's --output flag.
var globalOutputFormat atomic.Value

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(format string) (OutputFormat, error) {
	switch OutputFormat(format) {
	case OutputFormatJSON, OutputFormatYAML:
		return OutputFormat(format), nil
	case "":
		return DefaultOutput, nil
	}
	return "", fmt.Errorf("unknown output format %q (want yaml or json)", format)
}

// SetOutputFormat sets the global output format. Unknown values select
// the default.
func SetOutputFormat(format string) {
	f, err := ParseOutputFormat(format)
	if err != nil {
		f = DefaultOutput
	}
	globalOutputFormat.Store(f)
}

// GetOutputFormat returns the current global output format.
func GetOutputFormat() OutputFormat {
	if f, ok := globalOutputFormat.Load().(OutputFormat); ok {
		return f
	}
	return DefaultOutput
}

// Output writes data to stdout in the configured format.
func Output(data any) error {
	return OutputTo(os.Stdout, GetOutputFormat(), data)
}

// OutputTo writes data to the given writer in the specified format.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(toYAMLValue(data))
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// AsJSON marks v for output through its JSON encoding. YAML output then
// mirrors the JSON shape, which matters for json.RawMessage values.
func AsJSON(v any) any {
	return jsonShaped{v: v}
}

type jsonShaped struct{ v any }

func (j jsonShaped) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.v)
}

// toYAMLValue converts json.Marshaler values to a block-style YAML node,
// keeping key order. Other values are encoded by yaml.v3 directly.
func toYAMLValue(data any) any {
	m, ok := data.(json.Marshaler)
	if !ok {
		return data
	}
	b, err := m.MarshalJSON()
	if err != nil {
		return data
	}
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return data
	}
	clearStyle(&node)
	return &node
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
