package endpoints

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/api"
	"github.com/jackzampolin/docextract/internal/apperr"
	"github.com/jackzampolin/docextract/internal/extraction"
	"github.com/jackzampolin/docextract/internal/providers"
	"github.com/jackzampolin/docextract/internal/runner"
	"github.com/jackzampolin/docextract/internal/schema"
	"github.com/jackzampolin/docextract/internal/settings"
	"github.com/jackzampolin/docextract/internal/svcctx"
)

// maxFormMemory is how much of a multipart form is held in memory; larger
// parts spill to temporary files.
const maxFormMemory = 32 << 20

// ExtractEndpoint handles POST /api/extract/files.
type ExtractEndpoint struct{}

var _ api.Endpoint = (*ExtractEndpoint)(nil)

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", extraction.Path, e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := r.Header.Get(extraction.RequestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(extraction.RequestIDHeader, reqID)
	logger := svcctx.LoggerFrom(ctx).With("req_id", reqID)

	run := svcctx.RunnerFrom(ctx)
	if run == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}

	if limit := svcctx.MaxUploadBytesFrom(ctx); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	provider, err := providerConfig(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var doc *schema.Document
	if text := r.FormValue(extraction.FieldSchema); strings.TrimSpace(text) != "" {
		doc, err = schema.Parse(text)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid schema_definition: %v", err))
			return
		}
	}

	tempDir, err := os.MkdirTemp("", "docextract-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create temp dir: %v", err))
		return
	}
	defer os.RemoveAll(tempDir)

	var files []runner.File
	for i, fh := range r.MultipartForm.File[extraction.FieldFiles] {
		if !runner.Supported(fh.Filename) {
			logger.Warn("skipping unsupported file", "file", fh.Filename)
			continue
		}
		path := filepath.Join(tempDir, fmt.Sprintf("%03d_%s", i, filepath.Base(fh.Filename)))
		if err := saveUpload(fh, path); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save file: %v", err))
			return
		}
		files = append(files, runner.File{Name: fh.Filename, Path: path})
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No valid PDF or image files were uploaded")
		return
	}

	logger.Info("extraction request",
		"files", len(files),
		"provider", provider.Provider,
		"model", provider.Model,
		"schema_fields", doc.Len())

	res, err := run.Run(ctx, &runner.Job{
		RequestID: reqID,
		Files:     files,
		Prompt:    r.FormValue(extraction.FieldPrompt),
		Schema:    doc,
		Provider:  provider,
	})
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.Canceled):
		logger.Warn("client went away before extraction finished")
		return
	default:
		logger.Error("extraction failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("extraction complete",
		"records", res.Usage.SuccessfulExtractions,
		"total_cost", res.Usage.TotalCost)
	writeJSON(w, http.StatusOK, res)
}

// providerConfig reads the provider fields, applying the service defaults
// for missing ones.
func providerConfig(r *http.Request) (providers.Config, error) {
	cfg := providers.Config{
		Provider:        r.FormValue(extraction.FieldAPIProvider),
		APIKey:          r.FormValue(extraction.FieldAPIKey),
		Model:           r.FormValue(extraction.FieldModel),
		Temperature:     providers.DefaultTemperature,
		MaxTokens:       providers.DefaultMaxTokens,
		AzureEndpoint:   r.FormValue(extraction.FieldAzureEndpoint),
		AzureDeployment: r.FormValue(extraction.FieldAzureDeployment),
		APIVersion:      r.FormValue(extraction.FieldAPIVersion),
	}
	if cfg.Provider == "" {
		cfg.Provider = providers.ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = providers.DefaultModel
	}
	if v := r.FormValue(extraction.FieldTemperature); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid temperature %q", v)
		}
		cfg.Temperature = t
	}
	if v := r.FormValue(extraction.FieldMaxTokens); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid max_tokens %q", v)
		}
		cfg.MaxTokens = n
	}
	return cfg, nil
}

func saveUpload(fh *multipart.FileHeader, dest string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		prompt     string
		schemaFile string
		s          settings.Settings
	)
	cmd := &cobra.Command{
		Use:   "extract <file>...",
		Short: "Upload files to the extraction endpoint without using saved settings",
		Long: `Upload files straight to POST /api/extract/files.

Unlike the top-level extract command, no saved settings, templates or editor
state are read: everything comes from flags.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs := make([]extraction.Blob, len(args))
			for i, path := range args {
				blobs[i] = extraction.FileBlob(path)
			}

			var schemaText *string
			if schemaFile != "" {
				data, err := os.ReadFile(schemaFile)
				if err != nil {
					return fmt.Errorf("read schema: %w", err)
				}
				text := string(data)
				schemaText = &text
			}

			req, err := extraction.Build(blobs, prompt, s, schemaText)
			if err != nil {
				return err
			}
			res, err := extraction.NewClient(getServerURL()).Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return api.Output(api.AsJSON(res))
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Custom extraction prompt")
	cmd.Flags().StringVar(&schemaFile, "schema-file", "", "Path to a schema JSON file")
	cmd.Flags().StringVar((*string)(&s.APIProvider), "provider", string(settings.ProviderOpenAI), "API provider (openai or azure)")
	cmd.Flags().StringVar(&s.APIKey, "api-key", "${OPENAI_API_KEY}", "API key; ${ENV} references are expanded")
	cmd.Flags().StringVar(&s.Model, "model", settings.DefaultModel, "Model or Azure deployment model")
	cmd.Flags().Float64Var(&s.Temperature, "temperature", providers.DefaultTemperature, "Sampling temperature")
	cmd.Flags().IntVar(&s.MaxTokens, "max-tokens", settings.DefaultMaxTokens, "Maximum completion tokens")
	cmd.Flags().StringVar(&s.AzureEndpoint, "azure-endpoint", "", "Azure OpenAI endpoint")
	cmd.Flags().StringVar(&s.AzureDeployment, "azure-deployment", "", "Azure OpenAI deployment name")
	cmd.Flags().StringVar(&s.APIVersion, "api-version", "", "Azure OpenAI API version")
	return cmd
}
