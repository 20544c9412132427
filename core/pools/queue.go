package pools

import (
	"errors"
	"sync"
)

var (
	// ErrQueueClosed is returned when sending to a closed queue
	ErrQueueClosed = errors.New("job queue is closed")
	// ErrQueueFull is returned by TrySend on a bounded queue at capacity
	ErrQueueFull = errors.New("job queue is full")
)

// JobQueue is a FIFO queue of jobs. Any number of goroutines may send, and
// any number of workers compete to receive. A capacity of zero makes the
// queue unbounded, so Send never blocks.
type JobQueue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond

	jobs     []Job
	head     int
	capacity int
	closed   bool
}

// NewJobQueue creates a queue holding at most capacity pending jobs
// (0 = unbounded)
func NewJobQueue(capacity int) *JobQueue {
	if capacity < 0 {
		capacity = 0
	}
	q := &JobQueue{capacity: capacity}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu
	return q
}

// Send enqueues job, waiting for room if the queue is bounded and full
func (q *JobQueue) Send(job Job) error {
	return q.send(job, true)
}

// TrySend enqueues job or fails with ErrQueueFull instead of waiting
func (q *JobQueue) TrySend(job Job) error {
	return q.send(job, false)
}

func (q *JobQueue) send(job Job, wait bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.full() {
		if !wait {
			return ErrQueueFull
		}
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.jobs = append(q.jobs, job)
	q.notEmpty.Signal()
	return nil
}

// Recv blocks until a job is available. It returns false once the queue is
// closed and every job queued before Close has been handed out.
func (q *JobQueue) Recv() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 {
		if q.closed {
			return nil, false
		}
		q.notEmpty.Wait()
	}

	job := q.jobs[q.head]
	q.jobs[q.head] = nil
	q.head++

	switch {
	case q.head == len(q.jobs):
		q.jobs = q.jobs[:0]
		q.head = 0
	case q.head >= 64 && q.head*2 >= len(q.jobs):
		n := copy(q.jobs, q.jobs[q.head:])
		clear(q.jobs[n:])
		q.jobs = q.jobs[:n]
		q.head = 0
	}

	if q.capacity > 0 {
		q.notFull.Signal()
	}
	return job, true
}

// Close stops accepting jobs and wakes every waiting sender and receiver.
// Jobs already queued remain receivable.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the number of queued jobs
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Cap returns the configured capacity (0 = unbounded)
func (q *JobQueue) Cap() int {
	return q.capacity
}

func (q *JobQueue) lenLocked() int {
	return len(q.jobs) - q.head
}

func (q *JobQueue) full() bool {
	return q.capacity > 0 && q.lenLocked() >= q.capacity
}
