package queue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned when the in-process queue cannot accept more jobs.
var ErrQueueFull = errors.New("queue full")

// MemoryQueue is a buffered in-process queue used when Redis is not
// configured and in tests.
type MemoryQueue struct {
	jobs chan Job
}

// NewMemoryQueue creates a queue with the given buffer size.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{jobs: make(chan Job, size)}
}

// Dispatch enqueues without blocking; a full buffer is an error so the
// ingestion path can log and move on.
func (q *MemoryQueue) Dispatch(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop waits briefly for one job, mirroring the Redis consumer's block window.
func (q *MemoryQueue) Pop(ctx context.Context) (*Job, error) {
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return nil, nil
	}
}

// Len reports the number of buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Close is a no-op for the in-process queue.
func (q *MemoryQueue) Close() error { return nil }

var (
	_ Dispatcher = (*MemoryQueue)(nil)
	_ Consumer   = (*MemoryQueue)(nil)
)
