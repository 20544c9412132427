package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/searchktools/pool-server/config"
	"github.com/searchktools/pool-server/core"
	"github.com/searchktools/pool-server/core/admin"
	"github.com/searchktools/pool-server/core/failure"
	"github.com/searchktools/pool-server/core/observability"
)

// DefaultShutdownTimeout bounds how long Run waits for in-flight connections
const DefaultShutdownTimeout = 10 * time.Second

// App is the application instance: a pooled engine plus its admin endpoint
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	registry        *prometheus.Registry
	engine          *core.Engine
	socket          core.ListenOptions
	admin           *admin.Server
	shutdownTimeout time.Duration
}

// Option configures an App
type Option func(*App)

// WithLogger replaces the logger built from the configured env
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithShutdownTimeout overrides DefaultShutdownTimeout
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) { a.shutdownTimeout = d }
}

// New creates an application instance with the configured routes registered
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:             cfg,
		logger:          observability.NewLogger(cfg.Env, os.Stderr),
		registry:        prometheus.NewRegistry(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	engineOpts.Logger = a.logger
	engineOpts.Metrics = observability.NewMetrics(a.registry, "poolserver")
	a.engine = core.NewEngine(engineOpts)
	a.socket = engineOpts.Socket

	routes, err := cfg.ParsedRoutes()
	if err != nil {
		return nil, failure.New(failure.Configuration, "routes", err)
	}
	for _, r := range routes {
		a.engine.Add(r)
	}

	if cfg.AdminAddr != "" {
		a.admin = admin.NewServer(admin.Config{
			Addr:     cfg.AdminAddr,
			Gatherer: a.registry,
			Stats:    func() any { return a.engine.Stats() },
			Logger:   a.logger.With("component", "admin"),
		})
	}

	return a, nil
}

// Engine returns the underlying engine for route registration
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Registry returns the Prometheus registry the server reports to
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// AdminAddr returns the bound admin address, or nil when the admin server is
// disabled or not yet listening
func (a *App) AdminAddr() net.Addr {
	if a.admin == nil {
		return nil
	}
	return a.admin.Addr()
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves until ctx is done. The engine stops accepting, drains
// its queue and joins every worker before the admin server is closed.
func (a *App) RunContext(ctx context.Context) error {
	ln, err := core.Listen(a.cfg.Addr(), a.socket)
	if err != nil {
		return failure.New(failure.Startup, "listen", err)
	}

	var adminLn net.Listener
	if a.admin != nil {
		adminLn, err = net.Listen("tcp", a.cfg.AdminAddr)
		if err != nil {
			ln.Close()
			return failure.New(failure.Startup, "admin listen", err)
		}
	}

	a.logger.Info("application starting", "addr", ln.Addr().String(), "env", a.cfg.Env)

	served := make(chan error, 1)
	go func() { served <- a.engine.Serve(ln) }()

	adminDone := make(chan struct{})
	if a.admin != nil {
		go func() {
			defer close(adminDone)
			if err := a.admin.Serve(adminLn); err != nil {
				a.logger.Error("admin server failed", "error", err)
			}
		}()
	} else {
		close(adminDone)
	}

	var serveErr error
	select {
	case serveErr = <-served:
	case <-ctx.Done():
		a.logger.Info("shutdown requested", "cause", context.Cause(ctx))

		sctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.engine.Shutdown(sctx); err != nil {
			a.closeAdmin(sctx)
			return err
		}
		serveErr = <-served
	}

	sctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	adminErr := a.closeAdmin(sctx)
	<-adminDone

	a.logger.Info("application stopped")
	return errors.Join(serveErr, adminErr)
}

func (a *App) closeAdmin(ctx context.Context) error {
	if a.admin == nil {
		return nil
	}
	return a.admin.Shutdown(ctx)
}
