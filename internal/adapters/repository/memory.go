package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/metrics"
)

// MemoryStore keeps jobs in a map. Records are cloned on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*model.Job
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, job *model.Job) error {
	start := time.Now()
	defer observe("memory", "save", start)

	if job == nil || strings.TrimSpace(job.ID) == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	start := time.Now()
	defer observe("memory", "get", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*model.Job, error) {
	start := time.Now()
	defer observe("memory", "list", start)

	s.mu.RLock()
	out := make([]*model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filter.match(j) {
			out = append(out, j.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (map[model.JobState]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.JobState]int, 4)
	for _, j := range s.jobs {
		out[j.State]++
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}
