package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/api"
	"github.com/jackzampolin/docextract/internal/export"
	"github.com/jackzampolin/docextract/internal/extraction"
)

var extractOpts struct {
	prompt     string
	promptFile string
	schemaFile string
	noSchema   bool
	template   string
	server     string
	export     string
	retries    int
	exclude    []string
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract structured data from PDFs and images",
	Long: `Upload files to the extraction server with the saved API settings.

The prompt and schema come from, in order of precedence: --prompt/--prompt-file
and --schema-file, then --template, then the current editor buffers. An empty
schema (or --no-schema) lets the model choose the fields.

Results are printed in the --output format, or written with --export. The
export format follows the file extension: .json (records only), .xlsx (Data
and Usage sheets) or .msgpack (records and usage).`,
	Example: `  docextract extract invoice.pdf receipt.png
  docextract extract --template invoices scans/*.pdf --export results.xlsx
  docextract extract --no-schema --prompt "the vendor name" photo.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return runExtract(cmd, a, args)
		})
	},
}

func runExtract(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	cfg := a.config.Get()

	files := &extraction.FileSet{}
	for _, path := range args {
		files.Add(extraction.FileBlob(path))
	}
	for _, name := range extractOpts.exclude {
		if !files.Remove(name) {
			return fmt.Errorf("--exclude %s: no such file in the upload set", name)
		}
	}

	prompt, schemaText, err := resolvePromptAndSchema(cmd, a)
	if err != nil {
		return err
	}

	s, err := a.settings.Load(ctx)
	if err != nil {
		return err
	}
	if err := s.CheckAzure(); err != nil {
		return fmt.Errorf("settings incomplete: %w", err)
	}

	req, err := extraction.Build(files.Blobs(), prompt, s, schemaText)
	if err != nil {
		return err
	}

	url := extractOpts.server
	if url == "" {
		url = cfg.Client.ServerURL
	}
	retries := cfg.Client.Retries
	if cmd.Flags().Changed("retries") {
		retries = extractOpts.retries
	}
	policy := extraction.RetryPolicy{
		Attempts: uint(max(retries, 0) + 1),
		Delay:    cfg.Client.RetryDelayDuration(),
	}

	client := extraction.NewClient(url, extraction.WithLogger(a.logger))
	session := extraction.NewSession(extraction.SubmitterFunc(func(ctx context.Context, req *extraction.Request) (*extraction.Result, error) {
		return client.SubmitWithRetry(ctx, req, policy)
	}))

	a.logger.Info("submitting extraction", "server", client.BaseURL(), "files", files.Len())
	res, err := session.Submit(ctx, req)
	if err != nil {
		return err
	}

	if extractOpts.export == "" {
		return output(cmd, api.AsJSON(res))
	}
	path := extractOpts.export
	if path == exportToHome {
		path = filepath.Join(a.home.ExportsDir(), export.DefaultFileName)
	}
	format, err := export.WriteFile(path, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records (%s) to %s, total cost $%.4f\n",
		res.Usage.SuccessfulExtractions, format, path, res.Usage.TotalCost)
	return nil
}

// resolvePromptAndSchema applies flag, template and editor precedence.
// A nil schema means none is sent.
func resolvePromptAndSchema(cmd *cobra.Command, a *app) (string, *string, error) {
	prompt := a.prompt.GetValue()
	schemaText := a.schema.GetValue()

	if extractOpts.template != "" {
		t, err := a.templates.Load(cmd.Context(), extractOpts.template)
		if err != nil {
			return "", nil, err
		}
		prompt, schemaText = t.Prompt, t.Schema
	}

	switch {
	case extractOpts.prompt != "" && extractOpts.promptFile != "":
		return "", nil, fmt.Errorf("pass either --prompt or --prompt-file, not both")
	case extractOpts.prompt != "":
		prompt = extractOpts.prompt
	case extractOpts.promptFile != "":
		text, err := readInput(cmd, extractOpts.promptFile)
		if err != nil {
			return "", nil, err
		}
		prompt = text
	}

	if extractOpts.schemaFile != "" {
		text, err := readInput(cmd, extractOpts.schemaFile)
		if err != nil {
			return "", nil, err
		}
		schemaText = text
	}
	if extractOpts.noSchema {
		return strings.TrimSpace(prompt), nil, nil
	}
	return strings.TrimSpace(prompt), &schemaText, nil
}

// exportToHome is the value --export takes when given without a path.
const exportToHome = "@home"

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractOpts.prompt, "prompt", "", "Custom prompt for this run")
	f.StringVar(&extractOpts.promptFile, "prompt-file", "", "Read the prompt from a file (- for stdin)")
	f.StringVar(&extractOpts.schemaFile, "schema-file", "", "Read the schema from a file (- for stdin)")
	f.BoolVar(&extractOpts.noSchema, "no-schema", false, "Send no schema")
	f.StringVarP(&extractOpts.template, "template", "t", "", "Use a saved template's prompt and schema")
	f.StringVar(&extractOpts.server, "server", "", "Server URL (default: client.server_url)")
	f.StringVar(&extractOpts.export, "export", "", "Write results to a .json, .xlsx or .msgpack file (no value: home exports dir)")
	f.Lookup("export").NoOptDefVal = exportToHome
	f.IntVar(&extractOpts.retries, "retries", 0, "Retries on network errors and 5xx responses (default: client.retries)")
	f.StringSliceVar(&extractOpts.exclude, "exclude", nil, "Files to drop from the upload set, by path as given or by base name")

	rootCmd.AddCommand(extractCmd)
}
