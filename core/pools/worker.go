package pools

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// WorkerState is the lifecycle state of a single worker
type WorkerState uint32

const (
	StateIdle WorkerState = iota
	StateExecuting
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("WorkerState(%d)", uint32(s))
	}
}

// worker is a goroutine that pulls jobs from the pool's queue until it closes
type worker struct {
	id    int
	pool  *WorkerPool
	state atomic.Uint32
	done  chan struct{}
}

func newWorker(id int, pool *WorkerPool) *worker {
	return &worker{
		id:   id,
		pool: pool,
		done: make(chan struct{}),
	}
}

// run is the worker's main loop: Idle -> Executing -> Idle until the queue
// reports closed, then Stopped.
func (w *worker) run() {
	defer close(w.done)

	for {
		job, ok := w.pool.queue.Recv()
		if !ok {
			w.setState(StateStopped)
			w.pool.logger.Info("worker shutting down", "worker", w.id)
			if h := w.pool.hooks.OnStop; h != nil {
				h(w.id)
			}
			return
		}

		w.setState(StateExecuting)
		w.pool.active.Add(1)
		w.execute(job)
		w.pool.active.Add(-1)
		w.setState(StateIdle)
	}
}

// execute runs one job. A panic is recovered and recorded on the pool so the
// worker keeps draining the queue.
func (w *worker) execute(job Job) {
	p := w.pool
	p.logger.Debug("worker executing job", "worker", w.id)
	if h := p.hooks.OnStart; h != nil {
		h(w.id)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.recordPanic(w.id, r, debug.Stack())
		} else {
			p.stats.completed.Add(1)
		}
		if h := p.hooks.OnFinish; h != nil {
			h(w.id, time.Since(start))
		}
	}()

	job()
}

func (w *worker) setState(s WorkerState) {
	w.state.Store(uint32(s))
}

func (w *worker) State() WorkerState {
	return WorkerState(w.state.Load())
}
