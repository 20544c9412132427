// Package admin serves the operational endpoints: Prometheus metrics, engine
// stats and a health check.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/searchktools/pool-server/core/codec"
	"github.com/searchktools/pool-server/core/observability"
)

// StatsFunc returns the value served at /stats
type StatsFunc func() any

// Config contains admin server configuration
type Config struct {
	Addr                 string
	Gatherer             prometheus.Gatherer
	Stats                StatsFunc
	Logger               *slog.Logger
	MaxConcurrentStreams uint32
	IdleTimeout          time.Duration
}

// Server is an HTTP/1.1 and h2c (HTTP/2 cleartext) admin server
type Server struct {
	addr    string
	handler http.Handler
	server  *http.Server
	h2      *http2.Server
	stats   StatsFunc
	logger  *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// NewServer creates an admin server
func NewServer(cfg Config) *Server {
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = 100
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Stats == nil {
		cfg.Stats = func() any { return struct{}{} }
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.Discard()
	}

	s := &Server{
		addr:   cfg.Addr,
		stats:  cfg.Stats,
		logger: cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.h2 = &http2.Server{
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		IdleTimeout:          cfg.IdleTimeout,
	}
	s.handler = h2c.NewHandler(mux, s.h2)
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s
}

// Handler returns the admin HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	c := codec.Negotiate(r.Header.Get("Accept"))
	data, err := c.Encode(s.stats())
	if err != nil {
		s.logger.Error("encode stats", "codec", c.Name(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// ListenAndServe binds the configured address and serves until Shutdown
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("admin server listening", "addr", ln.Addr().String(), "protocols", "http/1.1,h2c")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.server.Shutdown(ctx)
}

// Addr returns the bound address once Serve has started
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
