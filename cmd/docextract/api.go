package main

import (
	"github.com/jackzampolin/docextract/internal/api"
	"github.com/jackzampolin/docextract/internal/config"
	"github.com/jackzampolin/docextract/internal/server/endpoints"
	"github.com/jackzampolin/docextract/version"
)

var serverURL string

// getServerURL returns --server, or client.server_url from the config.
// It runs after flag parsing.
func getServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	if _, cm, _, err := loadConfig(); err == nil {
		return cm.Get().Client.ServerURL
	}
	return config.DefaultConfig().Client.ServerURL
}

func init() {
	registry := api.NewRegistry()
	registry.Register(endpoints.All(endpoints.Config{Version: version.GitRelease})...)

	apiCmd := registry.BuildCommands(getServerURL)
	// Persistent so all subcommands inherit it
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "", "Server URL (default: client.server_url)",
	)
	rootCmd.AddCommand(apiCmd)
}
