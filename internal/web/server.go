// Package web exposes the summarization service over HTTP: a JSON API
// for resolving queries, reading trending topics, and health checks.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/roasbeef/smaart/internal/inference"
	"github.com/roasbeef/smaart/internal/orchestrator"
	"github.com/roasbeef/smaart/internal/trending"
)

// Trender reads aggregated trending topics.
type Trender interface {
	TopTopics(ctx context.Context, limit, hours int) ([]trending.Topic,
		error)
	QueryCount(ctx context.Context, hours int) (int, error)
}

// Ensure the real store satisfies the interface at compile time.
var _ Trender = (*trending.Store)(nil)

// Server is the HTTP server for the summarization API.
type Server struct {
	orch    *orchestrator.Orchestrator
	infMgr  *inference.Manager
	trender Trender
	log     *slog.Logger
	mux     *http.ServeMux
	srv     *http.Server
	addr    string

	started time.Time
}

// Config holds configuration for the web server.
type Config struct {
	Addr string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr: ":8000",
	}
}

// NewServer creates a new API server. trender may be nil, in which case
// the trending endpoint reports service unavailable.
func NewServer(cfg *Config, orch *orchestrator.Orchestrator,
	infMgr *inference.Manager, trender Trender,
	log *slog.Logger) *Server {

	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		orch:    orch,
		infMgr:  infMgr,
		trender: trender,
		log:     log.With("component", "web"),
		mux:     http.NewServeMux(),
		addr:    cfg.Addr,
		started: time.Now(),
	}

	s.registerAPIV1Routes()

	return s
}

// Handler returns the server's routing handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting API server", "addr", s.addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
