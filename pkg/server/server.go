package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"tycho-hq/meridian/pkg/config"
	"tycho-hq/meridian/pkg/proxy/handlers"
	"tycho-hq/meridian/pkg/proxy/middleware"
	"tycho-hq/meridian/pkg/telemetry/metrics"
)

// Deps carries the wired gateway components the server exposes over HTTP.
// Metrics and Logger are optional; a nil Metrics collector disables the
// /metrics endpoint and per-request recording.
type Deps struct {
	Frontend handlers.Frontend
	Catalogs handlers.CatalogSource
	Healths  handlers.HealthSource
	Quotas   handlers.QuotaSource
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// Server is the gateway HTTP server.
type Server struct {
	config       config.ServerConfig
	deps         Deps
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server from the resolved configuration and wired
// components.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}
}

// Start starts the HTTP server and blocks until shutdown. Shutdown is
// triggered by context cancellation, SIGINT/SIGTERM, or a listener error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.Listen,
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	if s.config.TLS.Enabled {
		tlsConfig, err := s.configureTLS()
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway server",
			"address", s.config.Listen,
			"tls_enabled", s.config.TLS.Enabled,
		)

		var err error
		if s.config.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("gateway server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/chat/completions", handlers.NewChatHandler(s.deps.Frontend, s.recorder(), s.logger))
	mux.Handle("/v1/models", handlers.NewModelsHandler(s.deps.Catalogs))
	mux.Handle("/health", handlers.NewHealthHandler())
	mux.Handle("/ready", handlers.NewReadyHandler(s.deps.Catalogs, nil))
	mux.Handle("/health/providers", handlers.NewProviderHealthHandler(s.deps.Catalogs, s.deps.Healths, s.deps.Quotas, nil))

	if s.deps.Metrics != nil && s.deps.Metrics.Enabled() {
		mux.Handle(s.deps.Metrics.Path(), s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(s.corsConfig())(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// recorder adapts the optional metrics collector to the handler interface.
// Returning a typed nil pointer would defeat the handler's nil check, so
// the conversion happens only when a collector is present.
func (s *Server) recorder() handlers.Recorder {
	if s.deps.Metrics == nil {
		return nil
	}
	return s.deps.Metrics
}

// corsConfig merges the configured CORS settings over the defaults. The
// exposed headers always include the routing attribution set; it is part
// of the API surface, not a deployment choice.
func (s *Server) corsConfig() *middleware.CORSConfig {
	cc := middleware.DefaultCORSConfig()
	cfg := s.config.CORS

	if cfg.Enabled != nil {
		cc.Enabled = *cfg.Enabled
	}
	if len(cfg.AllowedOrigins) > 0 {
		cc.AllowedOrigins = cfg.AllowedOrigins
	}
	if len(cfg.AllowedMethods) > 0 {
		cc.AllowedMethods = cfg.AllowedMethods
	}
	if len(cfg.AllowedHeaders) > 0 {
		cc.AllowedHeaders = cfg.AllowedHeaders
	}
	if cfg.MaxAge > 0 {
		cc.MaxAge = cfg.MaxAge
	}

	return cc
}

// configureTLS builds the TLS listener configuration. TLS 1.3 cipher
// suites are not configurable in crypto/tls, so the explicit suite list
// only constrains connections negotiated at 1.2.
func (s *Server) configureTLS() (*tls.Config, error) {
	cfg := s.config.TLS

	if cfg.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file not specified")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file not specified")
	}
	if _, err := os.Stat(cfg.CertFile); err != nil {
		return nil, fmt.Errorf("TLS cert file: %w", err)
	}
	if _, err := os.Stat(cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("TLS key file: %w", err)
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13,
	}

	switch cfg.MinVersion {
	case "", "1.3":
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
		tlsConfig.CipherSuites = []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		}
	default:
		return nil, fmt.Errorf("unsupported TLS min_version %q (want \"1.2\" or \"1.3\")", cfg.MinVersion)
	}

	return tlsConfig, nil
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler without starting a
// listener. Tests serve it through httptest.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
