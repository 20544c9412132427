package core

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/pool-server/core/failure"
	"github.com/searchktools/pool-server/core/observability"
	"github.com/searchktools/pool-server/core/optimize"
	"github.com/searchktools/pool-server/core/pools"
	"github.com/searchktools/pool-server/core/router"
	"github.com/searchktools/pool-server/core/static"
)

// Options configures an Engine
type Options struct {
	Workers        int
	QueueCapacity  int
	ReadBufferSize int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Bodies         static.Files
	MatchPolicy    router.MatchPolicy
	Socket         ListenOptions
	Logger         *slog.Logger
	Metrics        *observability.Metrics
}

// DefaultOptions returns the options of the stock server: eight workers, an
// unbounded queue, 1 KiB reads, no deadlines, first-match routing
func DefaultOptions() Options {
	return Options{
		Workers:        DefaultWorkers,
		ReadBufferSize: DefaultReadBufferSize,
		Bodies: static.Files{
			OK:       static.DefaultOK,
			NotFound: static.DefaultNotFound,
		},
		MatchPolicy: router.FirstMatch,
	}
}

// Engine accepts connections and runs each one as a job on a worker pool
type Engine struct {
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
	monitor    *observability.PerformanceMonitor
	bytePool   *pools.BytePool
	dispatcher *Dispatcher

	mu    sync.Mutex
	table *router.Table
	ln    net.Listener
	pool  *pools.WorkerPool

	// routes is published once by Serve and read lock-free by every job
	routes atomic.Pointer[router.Snapshot]

	started atomic.Bool
	closing atomic.Bool
	done    chan struct{}
}

// NewEngine creates an engine. Zero-valued options other than Workers fall
// back to DefaultOptions; Workers is validated when the engine starts.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = def.ReadBufferSize
	}
	if opts.Bodies.OK == "" {
		opts.Bodies.OK = def.Bodies.OK
	}
	if opts.Bodies.NotFound == "" {
		opts.Bodies.NotFound = def.Bodies.NotFound
	}
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics(nil, "poolserver")
	}

	e := &Engine{
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		monitor:  observability.NewPerformanceMonitor(),
		bytePool: pools.NewBytePool(),
		table:    router.NewTable(),
		done:     make(chan struct{}),
	}
	e.routes.Store(router.NewTable().Compile(opts.MatchPolicy))

	e.dispatcher = &Dispatcher{
		routes:       e.routes.Load,
		files:        opts.Bodies,
		bytePool:     e.bytePool,
		bufSize:      opts.ReadBufferSize,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		metrics:      e.metrics,
		monitor:      e.monitor,
	}

	return e
}

// GET registers a GET route. Routes must be registered before Serve.
func (e *Engine) GET(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.GET(path)
}

// POST registers a POST route. Routes must be registered before Serve.
func (e *Engine) POST(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.POST(path)
}

// Add registers a parsed route. Routes must be registered before Serve.
func (e *Engine) Add(r router.Route) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.Add(r.Method, r.Path)
}

// Routes returns the route snapshot in use. Before Serve it is empty.
func (e *Engine) Routes() *router.Snapshot {
	return e.routes.Load()
}

// Dispatcher returns the per-connection dispatcher
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Run binds addr and serves until Shutdown
func (e *Engine) Run(addr string) error {
	ln, err := Listen(addr, e.opts.Socket)
	if err != nil {
		return failure.New(failure.Startup, "listen", err)
	}
	return e.Serve(ln)
}

// Serve accepts connections from ln until Shutdown or a fatal accept error.
// On return the pool has drained every accepted connection and joined all
// workers; a panic in any job is reported here.
func (e *Engine) Serve(ln net.Listener) error {
	if !e.started.CompareAndSwap(false, true) {
		ln.Close()
		return failure.New(failure.Startup, "serve", ErrEngineStarted)
	}
	defer close(e.done)

	if err := e.opts.Bodies.Verify(); err != nil {
		ln.Close()
		return err
	}

	pool, err := pools.NewWorkerPool(e.opts.Workers,
		pools.WithLogger(e.logger),
		pools.WithQueueCapacity(e.opts.QueueCapacity),
		pools.WithHooks(e.poolHooks()),
	)
	if err != nil {
		ln.Close()
		return failure.New(failure.Startup, "start worker pool", err)
	}

	e.mu.Lock()
	snapshot := e.table.Compile(e.opts.MatchPolicy)
	e.routes.Store(snapshot)
	e.ln = ln
	e.pool = pool
	e.mu.Unlock()

	if e.closing.Load() {
		ln.Close()
	}

	e.logger.Info("server is running",
		"addr", ln.Addr().String(),
		"workers", e.opts.Workers,
		"routes", snapshot.Len(),
		"match_policy", snapshot.Policy().String(),
		"cpu", optimize.Features(),
	)

	acceptErr := e.acceptLoop(ln, pool)
	ln.Close()

	e.logger.Info("draining worker pool")
	poolErr := pool.Close()
	e.logger.Info("server stopped")

	return errors.Join(acceptErr, poolErr)
}

func (e *Engine) acceptLoop(ln net.Listener, pool *pools.WorkerPool) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if e.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				e.logger.Warn("accept timeout", "error", err)
				continue
			}
			return failure.New(failure.Connection, "accept", err)
		}

		if err := e.opts.Socket.tuneConn(conn); err != nil {
			e.logger.Warn("socket options not applied", "remote", conn.RemoteAddr().String(), "error", err)
		}
		if err := pool.Submit(e.connJob(conn)); err != nil {
			e.logger.Warn("connection rejected", "remote", conn.RemoteAddr().String(), "error", err)
			conn.Close()
		}
	}
}

// connJob wraps one connection as a pool job. Job errors are logged and
// counted; they never stop the worker.
func (e *Engine) connJob(conn net.Conn) pools.Job {
	return func() {
		if err := e.dispatcher.Serve(conn); err != nil {
			e.logger.Warn("connection job aborted",
				"remote", conn.RemoteAddr().String(),
				"kind", failure.KindOf(err).String(),
				"error", err,
			)
		}
	}
}

func (e *Engine) poolHooks() pools.Hooks {
	return pools.Hooks{
		OnSubmit: e.metrics.JobsSubmitted.Inc,
		OnStart:  func(int) { e.metrics.JobStarted() },
		OnFinish: func(_ int, elapsed time.Duration) { e.metrics.JobFinished(elapsed) },
		OnPanic:  func(int, any) { e.metrics.JobsPanicked.Inc() },
	}
}

// Shutdown stops accepting connections and waits, bounded by ctx, for Serve
// to drain the pool. The pool error itself is returned by Serve.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.closing.Store(true)

	e.mu.Lock()
	ln := e.ln
	e.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	// Serve may have started without publishing its listener yet; it sees
	// closing once it does.
	if !e.started.Load() {
		return nil
	}

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the listening address once Serve has started
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}
