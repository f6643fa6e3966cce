// Package server implements the HTTP API for uploading a document and
// asking questions about it. The server is started by `docqa serve`.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docqa-go/internal/ingestion"
)

// New constructs a Server around the retrieval session and the ingestion
// pipeline.
func New(sess Answerer, ing Ingester, cfg *Config) (*Server, error) {
	if sess == nil {
		return nil, fmt.Errorf("server: session must not be nil")
	}
	if ing == nil {
		return nil, fmt.Errorf("server: ingester must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	applyDefaults(cfg)

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	if cfg.APIKey == "" {
		log.Warn("server: DOCQA_API_KEY is not set, authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	var stopOnce sync.Once

	s := &Server{
		session:  sess,
		ingester: ing,
		history:  cfg.History,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
		stopRL:   func() { stopOnce.Do(stopRL) },
	}

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, h))
	}
	limit := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, rl.middleware(authMiddleware(cfg.APIKey, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/upload", limit("upload", s.handleUpload))
	mux.Handle("POST /upload-pdf", limit("upload", s.handleUpload))
	mux.Handle("POST /api/ask", limit("ask", s.handleAsk))
	mux.Handle("POST /ask", limit("ask", s.handleAsk))
	mux.Handle("POST /api/search", limit("search", s.handleSearch))
	mux.Handle("GET /api/status", protect("status", s.handleStatus))
	mux.Handle("DELETE /api/document", protect("document", s.handleResetDocument))
	mux.Handle("GET /api/history", protect("history", s.handleHistory))

	// Probes and metrics stay unauthenticated for orchestrators and scrapers.
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.handler = requestLogger(log, corsMiddleware(cfg.CORSOrigin, mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// applyDefaults fills zero-valued fields of cfg in place.
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		// Large uploads over slow links need more than the usual 30s.
		cfg.ReadTimeout = 2 * time.Minute
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = 10 * time.Minute
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Must outlast the slowest handler: an upload embeds every chunk.
		cfg.WriteTimeout = cfg.UploadTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = ingestion.MaxUploadBytes
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.MetricsRegistry == nil {
		reg := prometheus.NewRegistry()
		cfg.MetricsRegistry = reg
		if cfg.MetricsGatherer == nil {
			cfg.MetricsGatherer = reg
		}
	}
	if cfg.MetricsGatherer == nil {
		if g, ok := cfg.MetricsRegistry.(prometheus.Gatherer); ok {
			cfg.MetricsGatherer = g
		} else {
			cfg.MetricsGatherer = prometheus.DefaultGatherer
		}
	}
}

// Handler returns the fully wrapped root handler. Useful for tests and for
// embedding the API in another server.
func (s *Server) Handler() http.Handler { return s.handler }

// Close releases background resources. It is safe to call more than once
// and is called by Start on return.
func (s *Server) Close() { s.stopRL() }

// Addr returns the address the server listens on.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("docqa server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("docqa server stopped")
		return nil
	}
}
