// Package queue holds the FIFO of job IDs waiting to run.
//
// The queue is an injected dependency of the orchestrator, not a process
// singleton. All operations are guarded by one mutex so dequeue and the
// caller's state transition can be serialized around it.
package queue

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/vodcut/pkg/metrics"
)

const (
	defaultQueueCapacity = 10_000
)

// Queue is a FIFO of job IDs without duplicates.
type Queue interface {
	// Enqueue appends id. It fails with ErrDuplicate when id is already
	// queued, ErrQueueFull at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, id string) error

	// Peek returns the head without removing it.
	Peek(ctx context.Context) (string, bool)

	// Dequeue removes and returns the head.
	Dequeue(ctx context.Context) (string, bool)

	// Snapshot returns the queued IDs in order.
	Snapshot(ctx context.Context) []string

	Len(ctx context.Context) int

	Close() error
}

// InMemoryQueue implements Queue on a slice.
type InMemoryQueue struct {
	mu       sync.Mutex
	items    []string
	index    map[string]struct{}
	capacity int
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		index:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.closed:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	case ctx.Err() != nil:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	}
	if _, ok := q.index[id]; ok {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "duplicate")
		return ErrDuplicate
	}
	if len(q.items) >= q.capacity {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return ErrQueueFull
	}

	q.items = append(q.items, id)
	q.index[id] = struct{}{}
	metrics.RecordQueueEnqueue()
	q.publishLocked()
	return nil
}

// Peek implements Queue.
func (q *InMemoryQueue) Peek(_ context.Context) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0], true
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(_ context.Context) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	delete(q.index, id)
	metrics.RecordQueueDequeue()
	q.publishLocked()
	return id, true
}

// Snapshot implements Queue.
func (q *InMemoryQueue) Snapshot(_ context.Context) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.publishLocked()
	return len(q.items)
}

// Close stops accepting new IDs. Queued IDs can still be dequeued.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *InMemoryQueue) publishLocked() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
