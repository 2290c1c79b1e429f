package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull = errors.New("queue full")
	ErrDuplicate = errors.New("job already queued")
	ErrClosed    = errors.New("queue closed")
)
