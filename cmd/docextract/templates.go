package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/schema"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"template"},
	Short:   "Save and load named prompt and schema pairs",
}

// TemplateSummary is one row of `templates list`.
type TemplateSummary struct {
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
	// Fields is -1 when the saved schema is not valid JSON.
	Fields int `json:"fields" yaml:"fields"`
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved templates in the order they were first saved",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			all, err := a.templates.List(cmd.Context())
			if err != nil {
				return err
			}
			rows := []TemplateSummary{}
			for name, t := range all {
				fields := -1
				if doc, err := schema.Parse(t.Schema); err == nil {
					fields = doc.Len()
				}
				rows = append(rows, TemplateSummary{Name: name, Prompt: t.Prompt, Fields: fields})
			}
			return output(cmd, rows)
		})
	},
}

var templatesSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current prompt and schema under a name",
	Long: `Save the current prompt and schema under a name. An existing template
with the same name is overwritten and keeps its place in the list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			if err := a.templates.Save(cmd.Context(), args[0], a.prompt.GetValue(), a.schema.GetValue()); err != nil {
				return err
			}
			a.logger.Debug("template saved", "name", args[0])
			return nil
		})
	},
}

var templatesLoadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Copy a template's prompt and schema into the editors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			t, err := a.templates.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.prompt.SetValue(t.Prompt); err != nil {
				return err
			}
			return a.schema.SetValue(t.Schema)
		})
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.templates.Delete(cmd.Context(), args[0])
		})
	},
}

var templatesNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a fresh template: clear the prompt and restore the default schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			if err := a.prompt.Clear(); err != nil {
				return err
			}
			return schema.Reset(a.schema)
		})
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesSaveCmd, templatesLoadCmd, templatesDeleteCmd, templatesNewCmd)
	rootCmd.AddCommand(templatesCmd)
}
