// Package svcctx carries the service dependencies of the extraction server
// through request contexts. It lives outside server so endpoints can use it
// without an import cycle.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/docextract/internal/config"
	"github.com/jackzampolin/docextract/internal/providers"
	"github.com/jackzampolin/docextract/internal/runner"
)

// Services holds the core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Runner        *runner.Runner
	ConfigManager *config.Manager
	Limiter       *providers.RateLimiter
	Logger        *slog.Logger
	// MaxUploadBytes bounds the multipart form kept in memory.
	MaxUploadBytes int64
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// RunnerFrom extracts the extraction runner from context.
func RunnerFrom(ctx context.Context) *runner.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// LimiterFrom extracts the shared provider rate limiter from context.
// A nil limiter means requests are not rate limited.
func LimiterFrom(ctx context.Context) *providers.RateLimiter {
	if s := ServicesFrom(ctx); s != nil {
		return s.Limiter
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// MaxUploadBytesFrom returns the multipart memory bound, or 0 when unset.
func MaxUploadBytesFrom(ctx context.Context) int64 {
	if s := ServicesFrom(ctx); s != nil {
		return s.MaxUploadBytes
	}
	return 0
}
