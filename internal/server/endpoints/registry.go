package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/jackzampolin/docextract/internal/api"
)

// Config holds values endpoints need that do not flow through svcctx.
type Config struct {
	// Version is reported by GET /health.
	Version string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{Version: cfg.Version},
		&StatusEndpoint{},
		&ExtractEndpoint{},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
