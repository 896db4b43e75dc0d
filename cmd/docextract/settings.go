package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change the API settings sent with each extraction",
}

var settingsReveal bool

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved API settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			s, err := a.settings.Load(cmd.Context())
			if err != nil {
				return err
			}
			if !settingsReveal {
				s.APIKey = maskKey(s.APIKey)
			}
			return output(cmd, s)
		})
	},
}

var settingsFlags settings.Settings

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change API settings; only the flags given are updated",
	Example: `  docextract settings set --provider openai --api-key '${OPENAI_API_KEY}' --model gpt-4o
  docextract settings set --provider azure --azure-endpoint https://acme.openai.azure.com \
      --azure-deployment vision --api-version 2024-06-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.NFlag() == 0 {
			return fmt.Errorf("nothing to change; see --help for the available flags")
		}
		return withApp(func(a *app) error {
			s, err := a.settings.Load(cmd.Context())
			if err != nil {
				return err
			}

			if flags.Changed("provider") {
				s.APIProvider = settings.Provider(strings.ToLower(string(settingsFlags.APIProvider)))
			}
			if flags.Changed("api-key") {
				s.APIKey = settingsFlags.APIKey
			}
			if flags.Changed("model") {
				s.Model = settingsFlags.Model
			}
			if flags.Changed("temperature") {
				s.Temperature = settingsFlags.Temperature
			}
			if flags.Changed("max-tokens") {
				s.MaxTokens = settingsFlags.MaxTokens
			}
			if flags.Changed("azure-endpoint") {
				s.AzureEndpoint = settingsFlags.AzureEndpoint
			}
			if flags.Changed("azure-deployment") {
				s.AzureDeployment = settingsFlags.AzureDeployment
			}
			if flags.Changed("api-version") {
				s.APIVersion = settingsFlags.APIVersion
			}

			if err := a.settings.Save(cmd.Context(), s); err != nil {
				return err
			}
			// Saved anyway; extract refuses to run until this is fixed.
			if err := s.CheckAzure(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return nil
		})
	},
}

// maskKey hides all but the last four characters. ${ENV} references are
// shown as is.
func maskKey(key string) string {
	if key == "" || strings.HasPrefix(key, "${") {
		return key
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func init() {
	settingsShowCmd.Flags().BoolVar(&settingsReveal, "reveal", false, "Print the API key in full")

	f := settingsSetCmd.Flags()
	f.StringVar((*string)(&settingsFlags.APIProvider), "provider", "", "API provider: openai or azure")
	f.StringVar(&settingsFlags.APIKey, "api-key", "", "API key; ${ENV} references are expanded when sending")
	f.StringVar(&settingsFlags.Model, "model", "", "Model name")
	f.Float64Var(&settingsFlags.Temperature, "temperature", 0, "Sampling temperature")
	f.IntVar(&settingsFlags.MaxTokens, "max-tokens", 0, "Maximum completion tokens")
	f.StringVar(&settingsFlags.AzureEndpoint, "azure-endpoint", "", "Azure OpenAI endpoint URL")
	f.StringVar(&settingsFlags.AzureDeployment, "azure-deployment", "", "Azure OpenAI deployment name")
	f.StringVar(&settingsFlags.APIVersion, "api-version", "", "Azure OpenAI API version")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
