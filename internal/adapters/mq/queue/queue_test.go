package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if _, ok := q.Dequeue(ctx); ok {
		t.Error("expected dequeue on empty queue to fail")
	}

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if err := q.Enqueue(ctx, "job-2"); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}

	if head, ok := q.Peek(ctx); !ok || head != "job-1" {
		t.Errorf("expected head job-1, got %q", head)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("peek must not remove; expected length 2, got %d", l)
	}
	if snap := q.Snapshot(ctx); !slices.Equal(snap, []string{"job-1", "job-2"}) {
		t.Errorf("expected [job-1 job-2], got %v", snap)
	}

	id, ok := q.Dequeue(ctx)
	if !ok || id != "job-1" {
		t.Errorf("expected job-1, got %q", id)
	}
	if snap := q.Snapshot(ctx); !slices.Equal(snap, []string{"job-2"}) {
		t.Errorf("dequeued id must not stay queued, got %v", snap)
	}
	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Errorf("dequeued id should be accepted again: %v", err)
	}
}

func TestInMemoryQueue_FIFOOrder(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if err := q.Enqueue(ctx, fmt.Sprintf("job-%02d", i)); err != nil {
			t.Fatal(err)
		}
	}
	snap := q.Snapshot(ctx)
	for i := 0; i < 50; i++ {
		id, ok := q.Dequeue(ctx)
		want := fmt.Sprintf("job-%02d", i)
		if !ok || id != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, id)
		}
		if snap[i] != want {
			t.Fatalf("snapshot position %d: expected %s, got %s", i, want, snap[i])
		}
	}
}

func TestInMemoryQueue_Duplicate(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, "job-1"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Once dequeued the id may be queued again.
	q.Dequeue(ctx)
	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Errorf("expected re-enqueue after dequeue to succeed: %v", err)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	_ = q.Enqueue(ctx, "a")
	_ = q.Enqueue(ctx, "b")
	if err := q.Enqueue(ctx, "c"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()
	_ = q.Enqueue(ctx, "a")

	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, "b"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if id, ok := q.Dequeue(ctx); !ok || id != "a" {
		t.Errorf("queued ids should drain after close, got %q", id)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = q.Enqueue(ctx, fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	if l := q.Len(ctx); l != 500 {
		t.Fatalf("expected 500 queued, got %d", l)
	}

	seen := make(map[string]bool)
	var mu sync.Mutex
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, ok := q.Dequeue(ctx)
				if !ok {
					return
				}
				mu.Lock()
				if seen[id] {
					t.Errorf("id %s dequeued twice", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 500 {
		t.Errorf("expected 500 distinct ids, got %d", len(seen))
	}
}
