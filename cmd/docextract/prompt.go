package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Show and edit the custom extraction prompt",
	Long: `A custom prompt replaces the prompt generated from the schema. Leave it
empty to let the server describe the schema fields to the model.`,
}

var promptShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			fmt.Fprint(cmd.OutOrStdout(), ensureNewline(a.prompt.GetValue()))
			return nil
		})
	},
}

var promptFile string

var promptSetCmd = &cobra.Command{
	Use:   "set [text...]",
	Short: "Replace the current prompt",
	Example: `  docextract prompt set "Extract the invoice number and due date"
  docextract prompt set --file prompt.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if promptFile != "" {
			if len(args) > 0 {
				return fmt.Errorf("pass either text or --file, not both")
			}
			var err error
			if text, err = readInput(cmd, promptFile); err != nil {
				return err
			}
		}
		return withApp(func(a *app) error {
			return a.prompt.SetValue(strings.TrimSpace(text))
		})
	},
}

var promptClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the custom prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.prompt.Clear()
		})
	},
}

func init() {
	promptSetCmd.Flags().StringVar(&promptFile, "file", "", "Read the prompt from a file (- for stdin)")

	promptCmd.AddCommand(promptShowCmd, promptSetCmd, promptClearCmd)
	rootCmd.AddCommand(promptCmd)
}
