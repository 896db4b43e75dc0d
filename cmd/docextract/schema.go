package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show and edit the extraction schema",
	Long: `The schema describes the fields the model should return. Each field maps
to {"type": ..., "description": ...}; dict fields may nest "properties".

The schema lives in the editor buffer under the home directory and starts
out as the built-in invoice schema.`,
}

var schemaShowJSONSchema bool

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			text := a.schema.GetValue()
			if !schemaShowJSONSchema {
				fmt.Fprint(cmd.OutOrStdout(), ensureNewline(text))
				return nil
			}
			doc, err := schema.Parse(text)
			if err != nil {
				return err
			}
			return output(cmd, doc.JSONSchema())
		})
	},
}

var schemaDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Print the built-in default schema",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), ensureNewline(schema.Default()))
	},
}

// SchemaSummary describes a validated schema.
type SchemaSummary struct {
	Valid bool `json:"valid" yaml:"valid"`
	Empty bool `json:"empty" yaml:"empty"`
	// Fields is empty when the JSON is not a map of field definitions.
	Fields []string `json:"fields" yaml:"fields"`
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate [file|-]",
	Short: "Check that the current schema (or a file) is well-formed JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 1 {
			var err error
			if text, err = readInput(cmd, args[0]); err != nil {
				return err
			}
		} else {
			err := withApp(func(a *app) error {
				text = a.schema.GetValue()
				return nil
			})
			if err != nil {
				return err
			}
		}

		if err := schema.Validate(text); err != nil {
			if schema.IsIncomplete(err) {
				return fmt.Errorf("schema appears to be incomplete: %w", err)
			}
			return fmt.Errorf("invalid JSON: %w", err)
		}
		summary := SchemaSummary{Valid: true, Empty: strings.TrimSpace(text) == ""}
		// Fields are listed only for schemas in the field-map shape.
		if doc, err := schema.Parse(text); err == nil {
			summary.Fields = doc.Names()
		}
		return output(cmd, summary)
	},
}

var schemaSetCmd = &cobra.Command{
	Use:   "set <file|->",
	Short: "Replace the current schema with the contents of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		if err := schema.Validate(text); err != nil {
			return err
		}
		return withApp(func(a *app) error {
			return a.schema.SetValue(text)
		})
	},
}

var schemaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the built-in default schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return schema.Reset(a.schema)
		})
	},
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func init() {
	schemaShowCmd.Flags().BoolVar(&schemaShowJSONSchema, "json-schema", false, "Print the derived JSON Schema used to validate model output")

	schemaCmd.AddCommand(schemaShowCmd, schemaDefaultCmd, schemaValidateCmd, schemaSetCmd, schemaResetCmd)
	rootCmd.AddCommand(schemaCmd)
}
