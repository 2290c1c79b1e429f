package repository

import "errors"

// Sentinel kinds for job store errors.
var (
	ErrNotFound  = errors.New("job not found")
	ErrInvalidID = errors.New("invalid job id")
	ErrClosed    = errors.New("store closed")
)
