// Package repository persists job records.
//
// Jobs are never deleted; terminal jobs stay queryable for status.
package repository

import (
	"context"

	"github.com/okian/vodcut/internal/domain/model"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	State model.JobState
	Type  model.JobType
	// Limit caps the number of jobs returned. 0 means no limit.
	Limit int
}

func (f Filter) match(j *model.Job) bool {
	if f.State != "" && j.State != f.State {
		return false
	}
	if f.Type != "" && j.Type != f.Type {
		return false
	}
	return true
}

// Store provides read/write access to job records.
type Store interface {
	// Save inserts or replaces the job with the same ID.
	Save(ctx context.Context, job *model.Job) error

	// Get returns a copy of the job. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*model.Job, error)

	// List returns jobs matching filter ordered by creation time, oldest first.
	List(ctx context.Context, filter Filter) ([]*model.Job, error)

	// Count returns the number of jobs per state.
	Count(ctx context.Context) (map[model.JobState]int, error)

	Close() error
}
