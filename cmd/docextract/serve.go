package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/server"
)

var (
	serveHost  string
	servePort  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction server",
	Long: `Start the docextract HTTP server.

The server provides:
  - POST /api/extract/files - Multipart extraction of PDFs and images
  - GET  /health            - Basic server health check
  - GET  /status            - Concurrency, pricing and rate limiter state

PDF pages are rendered with poppler's pdftoppm, which must be on PATH.
Changes to the config file are picked up without a restart.

Examples:
  docextract serve                    # Start on server.host:server.port
  docextract serve --port 3000        # Start on custom port
  docextract serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, cm, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if serveWatch {
			cm.WatchConfig()
		}
		logger.Info("configuration loaded", "home", h.Path(), "config_file", cm.ConfigFileUsed())

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload settings when the config file changes")

	rootCmd.AddCommand(serveCmd)
}
