package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/api"
	"github.com/jackzampolin/docextract/internal/config"
	"github.com/jackzampolin/docextract/internal/editor"
	"github.com/jackzampolin/docextract/internal/home"
	"github.com/jackzampolin/docextract/internal/logging"
	"github.com/jackzampolin/docextract/internal/settings"
	"github.com/jackzampolin/docextract/internal/storage"
	"github.com/jackzampolin/docextract/internal/templates"
)

// app bundles what the client-side commands share: the home directory,
// configuration, the key/value store and the two editor buffers.
type app struct {
	home      *home.Dir
	config    *config.Manager
	logger    *slog.Logger
	storage   storage.Storage
	templates *templates.Store
	settings  *settings.Store
	schema    *editor.File
	prompt    *editor.File
}

// loadConfig opens the home directory and configuration without touching
// storage.
func loadConfig() (*home.Dir, *config.Manager, *slog.Logger, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, nil, err
	}
	cm, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cm.Get().Log, os.Stderr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("log config: %w", err)
	}
	cm.SetLogger(logger)
	return h, cm, logger, nil
}

// openApp loads configuration and opens storage. Callers must Close it.
func openApp() (*app, error) {
	h, cm, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	cfg := cm.Get()
	path := cfg.Storage.Path
	if path == "" {
		path = h.StoragePath(cfg.Storage.Driver)
	}
	st, err := storage.Open(cfg.Storage.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	logger.Debug("storage opened", "driver", cfg.Storage.Driver, "path", path)

	return &app{
		home:      h,
		config:    cm,
		logger:    logger,
		storage:   st,
		templates: templates.NewStore(st),
		settings:  settings.NewStore(st),
		schema:    editor.NewSchema(h.SchemaPath()),
		prompt:    editor.NewPrompt(h.PromptPath()),
	}, nil
}

// Close releases the store.
func (a *app) Close() error {
	return a.storage.Close()
}

// withApp opens the app for the duration of fn.
func withApp(fn func(a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	return errors.Join(fn(a), a.Close())
}

// output writes v to the command's stdout in the --output format.
func output(cmd *cobra.Command, v any) error {
	return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), v)
}
