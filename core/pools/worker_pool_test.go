package pools

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/pool-server/core/failure"
	"github.com/searchktools/pool-server/core/observability"
)

func TestWorkerPool_ExactlyOnce(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("workers=%d", size), func(t *testing.T) {
			pool, err := NewWorkerPool(size)
			require.NoError(t, err)

			const jobs = 500
			var runs [jobs]atomic.Int32
			for i := 0; i < jobs; i++ {
				i := i
				require.NoError(t, pool.Submit(func() {
					runs[i].Add(1)
				}))
			}

			require.NoError(t, pool.Close())
			for i := range runs {
				assert.Equal(t, int32(1), runs[i].Load(), "job %d", i)
			}

			stats := pool.Stats()
			assert.Equal(t, uint64(jobs), stats.JobsSubmitted)
			assert.Equal(t, uint64(jobs), stats.JobsCompleted)
			assert.Equal(t, 0, stats.JobsPending)
		})
	}
}

func TestWorkerPool_InvalidSize(t *testing.T) {
	before := runtime.NumGoroutine()

	for _, size := range []int{0, -1} {
		pool, err := NewWorkerPool(size)
		assert.Nil(t, pool)
		assert.ErrorIs(t, err, ErrInvalidPoolSize)
		assert.True(t, failure.Is(err, failure.Configuration))
	}

	assert.LessOrEqual(t, runtime.NumGoroutine(), before)
}

func TestWorkerPool_CloseJoinsEveryWorker(t *testing.T) {
	const size = 6
	var stopped atomic.Int32
	pool, err := NewWorkerPool(size, WithHooks(Hooks{
		OnStop: func(int) { stopped.Add(1) },
	}))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func() { time.Sleep(time.Millisecond) }))
	}

	require.NoError(t, pool.Close())
	assert.Equal(t, int32(size), stopped.Load())

	select {
	case <-pool.Done():
	default:
		t.Fatal("Done not closed after Close returned")
	}
	for _, s := range pool.WorkerStates() {
		assert.Equal(t, StateStopped, s)
	}
}

func TestWorkerPool_CloseDrainsQueuedJobs(t *testing.T) {
	pool, err := NewWorkerPool(1)
	require.NoError(t, err)

	release := make(chan struct{})
	var ran atomic.Int32
	require.NoError(t, pool.Submit(func() { <-release }))
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func() { ran.Add(1) }))
	}

	closed := make(chan error, 1)
	go func() { closed <- pool.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned while a job was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-closed)
	assert.Equal(t, int32(10), ran.Load())
}

func TestWorkerPool_FIFOBeginOrder(t *testing.T) {
	pool, err := NewWorkerPool(1)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, pool.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, pool.Close())

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestWorkerPool_ParallelCompletion(t *testing.T) {
	pool, err := NewWorkerPool(2)
	require.NoError(t, err)
	defer pool.Close()

	// Both jobs must be running at the same time for either to finish.
	var barrier sync.WaitGroup
	barrier.Add(2)
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		require.NoError(t, pool.Submit(func() {
			barrier.Done()
			barrier.Wait()
			done <- struct{}{}
		}))
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("jobs did not overlap")
		}
	}
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool, err := NewWorkerPool(2)
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	assert.ErrorIs(t, pool.Submit(func() {}), ErrPoolClosed)
	assert.ErrorIs(t, pool.Submit(nil), ErrNilJob)
	assert.NoError(t, pool.Close())
}

func TestWorkerPool_PanicSurfacesOnClose(t *testing.T) {
	rec := observability.NewRecorder()
	var panics atomic.Int32
	pool, err := NewWorkerPool(2,
		WithLogger(rec.Logger()),
		WithHooks(Hooks{OnPanic: func(int, any) { panics.Add(1) }}),
	)
	require.NoError(t, err)

	var ran atomic.Int32
	require.NoError(t, pool.Submit(func() { panic("boom") }))
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func() { ran.Add(1) }))
	}

	err = pool.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerPanicked)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int32(10), ran.Load())
	assert.Equal(t, int32(1), panics.Load())
	assert.Equal(t, 1, rec.Count("job panicked"))
	assert.Equal(t, uint64(1), pool.Stats().JobsPanicked)

	// Close is idempotent and keeps reporting the panic.
	assert.ErrorIs(t, pool.Close(), ErrWorkerPanicked)
}

func TestWorkerPool_LifecycleEvents(t *testing.T) {
	rec := observability.NewRecorder()
	pool, err := NewWorkerPool(3, WithLogger(rec.Logger()))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(func() {}))
	}
	require.NoError(t, pool.Close())

	assert.Equal(t, 4, rec.Count("worker executing job"))
	assert.Equal(t, 3, rec.Count("worker shutting down"))

	joins := rec.Find("shutting down worker")
	require.Len(t, joins, 3)
	for i, r := range joins {
		assert.Equal(t, int64(i), r.Attrs["worker"])
	}
}

func TestWorkerPool_BoundedQueue(t *testing.T) {
	pool, err := NewWorkerPool(1, WithQueueCapacity(2))
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, pool.TrySubmit(func() {}))
	require.NoError(t, pool.TrySubmit(func() {}))
	assert.ErrorIs(t, pool.TrySubmit(func() {}), ErrQueueFull)
	assert.Equal(t, uint64(1), pool.Stats().JobsRejected)

	// A blocking Submit waits for room instead of failing.
	submitted := make(chan error, 1)
	go func() { submitted <- pool.Submit(func() {}) }()
	select {
	case <-submitted:
		t.Fatal("Submit did not wait on a full queue")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-submitted)
	require.NoError(t, pool.Close())
	assert.Equal(t, uint64(4), pool.Stats().JobsCompleted)
}

func TestWorkerPool_ShutdownContext(t *testing.T) {
	pool, err := NewWorkerPool(1)
	require.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, pool.Submit(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = pool.Shutdown(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	assert.NoError(t, pool.Close())
}

func BenchmarkWorkerPool_Submit(b *testing.B) {
	pool, err := NewWorkerPool(8)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			pool.Submit(func() {
				_ = 1 + 1
			})
		}
	})

	pool.Close()
}
