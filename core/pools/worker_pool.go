package pools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/pool-server/core/failure"
)

// Job is a run-once unit of work
type Job func()

var (
	ErrInvalidPoolSize = errors.New("pool size must be positive")
	ErrNilJob          = errors.New("nil job")
	ErrPoolClosed      = errors.New("worker pool is closed")
	ErrWorkerPanicked  = errors.New("worker job panicked")
)

// Hooks let callers observe pool lifecycle events. Every hook is optional and
// must be safe for concurrent use.
type Hooks struct {
	OnSubmit func()
	OnStart  func(workerID int)
	OnFinish func(workerID int, elapsed time.Duration)
	OnPanic  func(workerID int, recovered any)
	OnStop   func(workerID int)
}

// Option configures a WorkerPool
type Option func(*options)

type options struct {
	logger        *slog.Logger
	hooks         Hooks
	queueCapacity int
}

// WithLogger sets the logger for worker lifecycle events
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHooks installs lifecycle hooks
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithQueueCapacity bounds the job queue. Submit then waits for room and
// TrySubmit rejects with ErrQueueFull. Zero keeps the queue unbounded.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.queueCapacity = n }
}

// WorkerPool runs jobs on a fixed set of worker goroutines that share one
// FIFO queue
type WorkerPool struct {
	queue   *JobQueue
	workers []*worker
	logger  *slog.Logger
	hooks   Hooks
	active  atomic.Int64

	closeOnce sync.Once
	joined    chan struct{}
	joinErr   error

	panicMu sync.Mutex
	panics  []error

	// Statistics
	stats struct {
		submitted atomic.Uint64
		completed atomic.Uint64
		panicked  atomic.Uint64
		rejected  atomic.Uint64
	}
}

// NewWorkerPool starts size workers. A non-positive size is rejected before
// any goroutine is started: such a pool could never drain its queue.
func NewWorkerPool(size int, opts ...Option) (*WorkerPool, error) {
	if size <= 0 {
		return nil, failure.New(failure.Configuration, "new worker pool",
			fmt.Errorf("%w: got %d", ErrInvalidPoolSize, size))
	}

	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	p := &WorkerPool{
		queue:   NewJobQueue(o.queueCapacity),
		workers: make([]*worker, size),
		logger:  o.logger,
		hooks:   o.hooks,
		joined:  make(chan struct{}),
	}

	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
	for _, w := range p.workers {
		go w.run()
	}

	p.logger.Info("worker pool started", "workers", size, "queue_capacity", o.queueCapacity)
	return p, nil
}

// Submit enqueues job and returns without waiting for it to run. On an
// unbounded queue it never blocks.
func (p *WorkerPool) Submit(job Job) error {
	return p.submit(job, true)
}

// TrySubmit is Submit that rejects with ErrQueueFull rather than waiting on
// a bounded queue
func (p *WorkerPool) TrySubmit(job Job) error {
	return p.submit(job, false)
}

func (p *WorkerPool) submit(job Job, wait bool) error {
	if job == nil {
		return ErrNilJob
	}

	var err error
	if wait {
		err = p.queue.Send(job)
	} else {
		err = p.queue.TrySend(job)
	}

	switch {
	case errors.Is(err, ErrQueueClosed):
		return ErrPoolClosed
	case errors.Is(err, ErrQueueFull):
		p.stats.rejected.Add(1)
		return err
	case err != nil:
		return err
	}

	p.stats.submitted.Add(1)
	if h := p.hooks.OnSubmit; h != nil {
		h()
	}
	return nil
}

// Close stops accepting jobs, lets the workers drain everything already
// queued, and joins them in index order. It returns ErrWorkerPanicked joined
// with every recovered panic if any job panicked. Later calls return the same
// result.
func (p *WorkerPool) Close() error {
	return p.Shutdown(context.Background())
}

// Shutdown is Close bounded by ctx. If ctx ends first its error is returned
// and the workers keep draining in the background.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.queue.Close()
		go p.join()
	})

	select {
	case <-p.joined:
		return p.joinErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) join() {
	for _, w := range p.workers {
		p.logger.Info("shutting down worker", "worker", w.id)
		<-w.done
	}

	p.panicMu.Lock()
	if len(p.panics) > 0 {
		p.joinErr = errors.Join(append([]error{ErrWorkerPanicked}, p.panics...)...)
	}
	p.panicMu.Unlock()

	p.logger.Info("worker pool stopped", "workers", len(p.workers))
	close(p.joined)
}

func (p *WorkerPool) recordPanic(workerID int, recovered any, stack []byte) {
	p.stats.panicked.Add(1)

	p.panicMu.Lock()
	p.panics = append(p.panics, fmt.Errorf("worker %d: %v", workerID, recovered))
	p.panicMu.Unlock()

	p.logger.Error("job panicked", "worker", workerID, "panic", recovered, "stack", string(stack))
	if h := p.hooks.OnPanic; h != nil {
		h(workerID, recovered)
	}
}

// Done is closed once every worker has been joined
func (p *WorkerPool) Done() <-chan struct{} {
	return p.joined
}

// Size returns the number of workers
func (p *WorkerPool) Size() int {
	return len(p.workers)
}

// WorkerStates returns each worker's current state, indexed by worker id
func (p *WorkerPool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.State()
	}
	return states
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    len(p.workers),
		ActiveWorkers: int(p.active.Load()),
		JobsSubmitted: p.stats.submitted.Load(),
		JobsCompleted: p.stats.completed.Load(),
		JobsPanicked:  p.stats.panicked.Load(),
		JobsRejected:  p.stats.rejected.Load(),
		JobsPending:   p.queue.Len(),
		QueueCapacity: p.queue.Cap(),
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers    int    `json:"num_workers"`
	ActiveWorkers int    `json:"active_workers"`
	JobsSubmitted uint64 `json:"jobs_submitted"`
	JobsCompleted uint64 `json:"jobs_completed"`
	JobsPanicked  uint64 `json:"jobs_panicked"`
	JobsRejected  uint64 `json:"jobs_rejected"`
	JobsPending   int    `json:"jobs_pending"`
	QueueCapacity int    `json:"queue_capacity"`
}
