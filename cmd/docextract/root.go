package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/api"
	"github.com/jackzampolin/docextract/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "docextract",
	Short: "Extract structured data from PDFs and images with vision LLMs",
	Long: `docextract sends documents to an extraction service that asks a vision
model (OpenAI or Azure OpenAI) for JSON shaped by a user-defined schema.

The client side keeps:
  - an editable schema and prompt
  - named templates pairing a prompt with a schema
  - API settings (provider, key, model, sampling parameters)

The service side (docextract serve) renders PDFs, calls the model per page
and reports token usage and cost.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docextract/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docextract home directory (default: ~/.docextract)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := api.ParseOutputFormat(outputFormat); err != nil {
			return err
		}
		api.SetOutputFormat(outputFormat)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}
