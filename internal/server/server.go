// Package server runs the docextract extraction service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/docextract/internal/api"
	"github.com/jackzampolin/docextract/internal/config"
	"github.com/jackzampolin/docextract/internal/providers"
	"github.com/jackzampolin/docextract/internal/runner"
	"github.com/jackzampolin/docextract/internal/server/endpoints"
	"github.com/jackzampolin/docextract/internal/svcctx"
	"github.com/jackzampolin/docextract/version"
)

// extractWriteTimeout bounds how long a single extraction response may take.
const extractWriteTimeout = 30 * time.Minute

// Server is the extraction HTTP server.
type Server struct {
	httpServer *http.Server
	runner     *runner.Runner
	limiter    *providers.RateLimiter
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
	addr    string
	ready   chan struct{}
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: server.host from config)
	Host string
	// Port is the port to listen on (default: server.port from config).
	// "0" picks a free port; Addr reports it once Ready is closed.
	Port string
	// ConfigManager provides configuration with hot-reload support.
	// Nil uses config.DefaultConfig.
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger

	// Factory and Renderer replace the OpenAI client and poppler
	// rendering, mainly in tests.
	Factory  providers.Factory
	Renderer runner.Renderer
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	conf := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		conf = cfg.ConfigManager.Get()
	}
	if cfg.Host == "" {
		cfg.Host = conf.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = conf.Server.Port
	}
	if _, err := time.ParseDuration(conf.Server.ProviderTimeout); conf.Server.ProviderTimeout != "" && err != nil {
		return nil, fmt.Errorf("invalid server.provider_timeout %q: %w", conf.Server.ProviderTimeout, err)
	}

	limiter := providers.NewRateLimiter(conf.Server.RequestsPerMinute)
	run := runner.New(runner.Options{
		Server:   conf.Server,
		Pricing:  conf.Pricing,
		Factory:  cfg.Factory,
		Renderer: cfg.Renderer,
		Limiter:  limiter,
		Logger:   cfg.Logger,
	})

	s := &Server{
		runner:    run,
		limiter:   limiter,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
		ready:     make(chan struct{}),
	}
	s.services = &svcctx.Services{
		Runner:         run,
		ConfigManager:  cfg.ConfigManager,
		Limiter:        limiter,
		Logger:         cfg.Logger,
		MaxUploadBytes: int64(conf.Server.MaxUploadMB) << 20,
	}

	// Hot reload: later jobs pick up new limits and prices.
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			run.Update(c)
			s.mu.Lock()
			s.services.MaxUploadBytes = int64(c.Server.MaxUploadMB) << 20
			s.mu.Unlock()
			cfg.Logger.Info("extraction settings reloaded from config",
				"max_concurrent_files", c.Server.MaxConcurrentFiles,
				"pricing_entries", len(c.Pricing))
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	s.endpointRegistry.Register(endpoints.All(endpoints.Config{Version: version.GitRelease})...)

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.withServices(mux),
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      extractWriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Start starts the server.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.running = true
	s.addr = ln.Addr().String()
	close(s.ready)
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops accepting extraction requests and waits for in-flight
// ones to finish.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")
	s.setNotRunning()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr != "" {
		return s.addr
	}
	return s.httpServer.Addr
}

// Runner returns the extraction runner.
func (s *Server) Runner() *runner.Runner {
	return s.runner
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		services := *s.services
		s.mu.RUnlock()
		ctx := svcctx.WithServices(r.Context(), &services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that rejects work while the server is not
// running, including during shutdown.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.IsRunning() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not accepting requests"}`))
			return
		}
		next(w, r)
	}
}
