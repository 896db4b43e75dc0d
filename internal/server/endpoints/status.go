package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docextract/internal/api"
	"github.com/jackzampolin/docextract/internal/providers"
	"github.com/jackzampolin/docextract/internal/svcctx"
)

// StatusResponse reports the limits extraction jobs currently run with.
type StatusResponse struct {
	Server             string                       `json:"server" yaml:"server"`
	ConfigFile         string                       `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	MaxConcurrentFiles int                          `json:"max_concurrent_files" yaml:"max_concurrent_files"`
	PDFMode            string                       `json:"pdf_mode" yaml:"pdf_mode"`
	PDFDPI             int                          `json:"pdf_dpi" yaml:"pdf_dpi"`
	PricedModels       []string                     `json:"priced_models" yaml:"priced_models"`
	RateLimit          *providers.RateLimiterStatus `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	run := svcctx.RunnerFrom(r.Context())
	if run == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}

	server := run.ServerConfig()
	resp := StatusResponse{
		Server:             "running",
		MaxConcurrentFiles: server.MaxConcurrentFiles,
		PDFMode:            server.PDFMode,
		PDFDPI:             server.PDFDPI,
		PricedModels:       run.PricedModels(),
	}
	if cm := svcctx.ConfigManagerFrom(r.Context()); cm != nil {
		resp.ConfigFile = cm.ConfigFileUsed()
	}
	if limiter := svcctx.LimiterFrom(r.Context()); limiter != nil {
		status := limiter.Status()
		resp.RateLimit = &status
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server limits and rate limiter state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
