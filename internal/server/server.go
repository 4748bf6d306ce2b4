// Package server provides the HTTP API for mrlsearch.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/mrlsearch"
	"github.com/hupe1980/mrlsearch/blobstore"
)

// Server is the HTTP server for the search API.
type Server struct {
	engine   *mrlsearch.SearchEngine
	store    blobstore.BlobStore
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	defaultK int
	addr     string
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithDefaultK sets k for requests that omit it.
func WithDefaultK(k int) Option {
	return func(s *Server) { s.defaultK = k }
}

// NewServer creates a server. store may be nil for a hot-only engine.
func NewServer(engine *mrlsearch.SearchEngine, store blobstore.BlobStore, addr string, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
		gatherer: prometheus.DefaultGatherer,
		defaultK: 10,
		addr:     addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/index", s.handleIndex)
	r.Get("/api/v1/partitions", s.handlePartition)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Start starts the HTTP server and blocks until it stops. It returns nil
// after a graceful Stop.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
