// Package server implements the HTTP server that exposes the document
// repository via a REST API: document ingestion and retrieval, hybrid
// search, stats, and per-session search history.
// The server is started by the `ragstore serve` CLI command.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/ragstore-go/internal/history"
	"github.com/54b3r/ragstore-go/internal/logging"
	"github.com/54b3r/ragstore-go/internal/repository"
)

// New constructs a Server from the provided repository, history store, and
// config. hist may be nil, in which case the history endpoints return 404.
func New(repo *repository.Repository, hist history.Store, cfg *Config) (*Server, error) {
	if repo == nil {
		return nil, fmt.Errorf("server: repository must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout covers ingestion of large documents, including the
		// embedding round-trips.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	registry := cfg.MetricsRegistry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	gatherer := cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		repo:    repo,
		hist:    hist,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(registry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not configured — authentication disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents", s.instrument("documents_create", s.handleIngest))
	mux.HandleFunc("GET /api/documents", s.instrument("documents_list", s.handleListDocuments))
	mux.HandleFunc("GET /api/documents/{id}", s.instrument("documents_get", s.handleGetDocument))
	mux.HandleFunc("DELETE /api/documents/{id}", s.instrument("documents_delete", s.handleDeleteDocument))
	mux.HandleFunc("GET /api/search", s.instrument("search", s.handleSearch))
	mux.HandleFunc("GET /api/stats", s.instrument("stats", s.handleStats))
	mux.HandleFunc("GET /api/history", s.instrument("history_list", s.handleHistory))
	mux.HandleFunc("DELETE /api/history", s.instrument("history_clear", s.handleClearHistory))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	handler := requestLogger(s.log,
		rl.middleware(
			authMiddleware(cfg.APIKey, mux)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root HTTP handler. Exposed for tests that
// drive the full middleware chain through httptest.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("ragstore server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
