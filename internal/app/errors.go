package service

import "errors"

// Orchestrator errors.
var (
	// ErrIdle is returned by Advance when no job is running or queued.
	ErrIdle = errors.New("no job to advance")
	// ErrNotNext is returned by AdvanceJob for a job that is neither
	// running nor at the head of the queue.
	ErrNotNext = errors.New("job is not next in line")
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
)
