// Package runner executes extraction jobs for the service: it renders each
// uploaded file into page images, sends every page to the vision model and
// aggregates the extracted records with per-page token usage and cost.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/docextract/internal/config"
	"github.com/jackzampolin/docextract/internal/extraction"
	"github.com/jackzampolin/docextract/internal/providers"
	"github.com/jackzampolin/docextract/internal/schema"
)

// File is one accepted upload, already saved to disk.
type File struct {
	Name string
	Path string
}

// Job is one extraction request.
type Job struct {
	RequestID string
	Files     []File
	Prompt    string
	// Schema is nil or empty when the request carried no schema.
	Schema   *schema.Document
	Provider providers.Config
}

// Options configures a Runner.
type Options struct {
	Server  config.ServerCfg
	Pricing []config.ModelPrice

	// Factory builds the provider client; defaults to providers.New.
	Factory providers.Factory
	// Renderer overrides page rendering; defaults to PopplerRenderer.
	Renderer Renderer
	// Limiter is shared across jobs; nil means unlimited.
	Limiter *providers.RateLimiter
	Logger  *slog.Logger
}

// Runner processes jobs. It is safe for concurrent use; Update swaps the
// server and pricing settings for jobs started afterwards.
type Runner struct {
	factory  providers.Factory
	renderer Renderer
	limiter  *providers.RateLimiter
	logger   *slog.Logger

	mu      sync.RWMutex
	server  config.ServerCfg
	pricing *config.Config
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Factory == nil {
		opts.Factory = providers.New
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		factory:  opts.Factory,
		renderer: opts.Renderer,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
		server:   opts.Server,
		pricing:  &config.Config{Pricing: opts.Pricing},
	}
}

// Update applies reloaded configuration.
func (r *Runner) Update(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.server = cfg.Server
	r.pricing = &config.Config{Pricing: cfg.Pricing}
}

func (r *Runner) snapshot() (config.ServerCfg, *config.Config) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.server, r.pricing
}

// ServerConfig returns the server settings new jobs run with.
func (r *Runner) ServerConfig() config.ServerCfg {
	server, _ := r.snapshot()
	return server
}

// PricedModels lists the model prefixes with a configured price.
func (r *Runner) PricedModels() []string {
	_, pricing := r.snapshot()
	out := make([]string, 0, len(pricing.Pricing))
	for _, p := range pricing.Pricing {
		out = append(out, p.Model)
	}
	return out
}

// run holds what every file of one job shares.
type run struct {
	job        *Job
	client     providers.VisionClient
	renderer   Renderer
	mode       string
	prompt     string
	schema     *jsonschema.Schema
	schemaText json.RawMessage
	price      config.ModelPrice
	priced     bool
	logger     *slog.Logger
}

type fileOutcome struct {
	records []json.RawMessage
	usage   extraction.FileUsage
}

// Run processes every file of job and aggregates the result. Per-file
// failures are reported in the usage; only setup failures (invalid provider
// configuration, uncompilable schema) and cancellation return an error.
func (r *Runner) Run(ctx context.Context, job *Job) (*extraction.Result, error) {
	server, pricing := r.snapshot()

	pcfg := job.Provider
	pcfg.MaxRetries = server.ProviderRetries
	pcfg.Timeout = server.ProviderTimeoutDuration()
	client, err := r.factory(pcfg)
	if err != nil {
		return nil, err
	}

	rn := &run{
		job:      job,
		client:   client,
		renderer: r.renderer,
		mode:     server.PDFMode,
		prompt:   BuildPrompt(job.Prompt, job.Schema),
		logger:   r.logger.With("req_id", job.RequestID),
	}
	if rn.renderer == nil {
		rn.renderer = PopplerRenderer{DPI: server.PDFDPI}
	}
	if job.Schema.Len() > 0 {
		rn.schemaText, err = json.Marshal(job.Schema.JSONSchema())
		if err != nil {
			return nil, fmt.Errorf("encode schema: %w", err)
		}
		rn.schema, err = providers.CompileSchema(rn.schemaText)
		if err != nil {
			return nil, err
		}
	}
	model := pcfg.Model
	if model == "" {
		model = providers.DefaultModel
	}
	rn.price, rn.priced = pricing.PriceFor(model)
	if !rn.priced {
		rn.logger.Warn("no price configured for model, costs will be zero", "model", model)
	}

	limit := server.MaxConcurrentFiles
	if limit <= 0 {
		limit = 1
	}

	outcomes := make([]fileOutcome, len(job.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range job.Files {
		g.Go(func() error {
			outcomes[i] = r.processFile(gctx, rn, f)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return aggregate(outcomes), nil
}

func aggregate(outcomes []fileOutcome) *extraction.Result {
	data := make([]json.RawMessage, 0, len(outcomes))
	usage := extraction.Usage{
		Files:     make([]extraction.FileUsage, 0, len(outcomes)),
		FileCount: len(outcomes),
	}
	var total float64
	for _, o := range outcomes {
		data = append(data, o.records...)
		usage.Files = append(usage.Files, o.usage)
		total += o.usage.TotalCost
	}
	usage.SuccessfulExtractions = len(data)
	usage.TotalCost = round4(total)
	return &extraction.Result{Data: data, Usage: usage}
}

func (r *Runner) processFile(ctx context.Context, rn *run, f File) fileOutcome {
	start := time.Now()
	name := filepath.Base(f.Name)
	logger := rn.logger.With("file", name)

	fail := func(err error) fileOutcome {
		logger.Error("failed to process file", "error", err)
		return fileOutcome{usage: extraction.FileUsage{FileName: name, Error: err.Error()}}
	}

	pages, err := rn.renderer.Render(ctx, f.Path)
	if err != nil {
		return fail(err)
	}
	if rn.mode != ModePages && len(pages) > 1 {
		pages = []image.Image{Stitch(pages)}
	}

	out := fileOutcome{
		usage: extraction.FileUsage{
			FileName:    name,
			PageCount:   len(pages),
			PageMetrics: make([]extraction.PageMetric, 0, len(pages)),
		},
	}
	var fileCost float64
	for i, page := range pages {
		pageNum := i + 1
		logger.Info("processing page", "page", pageNum, "pages", len(pages))

		jpg, err := EncodeJPEG(page)
		if err != nil {
			return fail(err)
		}
		res, err := r.extractPage(ctx, rn, jpg)
		if err != nil {
			return fail(fmt.Errorf("page %d: %w", pageNum, err))
		}

		cost := rn.cost(res)
		fileCost += cost
		out.records = append(out.records, res.ParsedJSON)
		out.usage.PageMetrics = append(out.usage.PageMetrics, extraction.PageMetric{
			FileName:         name,
			PageNumber:       pageNum,
			PromptTokens:     res.PromptTokens,
			CompletionTokens: res.CompletionTokens,
			TotalTokens:      res.TotalTokens,
			TotalCost:        cost,
		})
	}
	out.usage.TotalCost = round4(fileCost)

	logger.Info("file processed",
		"pages", len(pages),
		"total_cost", out.usage.TotalCost,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out
}

func (r *Runner) extractPage(ctx context.Context, rn *run, jpg []byte) (*providers.PageResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := rn.client.Extract(ctx, &providers.PageRequest{
		Prompt:     rn.prompt,
		Image:      jpg,
		MIMEType:   "image/jpeg",
		Schema:     rn.schema,
		SchemaText: rn.schemaText,
		RequestID:  rn.job.RequestID,
	})
	var rlErr *providers.RateLimitError
	if errors.As(err, &rlErr) {
		r.limiter.Record429()
	}
	return res, err
}

// cost prices one page, rounded to four decimal places.
func (rn *run) cost(res *providers.PageResult) float64 {
	if !rn.priced {
		return 0
	}
	c := float64(res.PromptTokens)/1e6*rn.price.InputPer1M +
		float64(res.CompletionTokens)/1e6*rn.price.OutputPer1M
	return round4(c)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
