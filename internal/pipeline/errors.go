package pipeline

import "errors"

var (
	// ErrNoInput is returned when a document has no usable blocks.
	ErrNoInput = errors.New("no content blocks in input")
	// ErrNoUnits is returned when tree building leaves nothing to emit.
	ErrNoUnits = errors.New("no units produced")
	// ErrQueueFull is returned by Submit when the job queue is at capacity.
	ErrQueueFull = errors.New("job queue is full")
	// ErrDuplicate is returned when the catalog already holds the content.
	ErrDuplicate = errors.New("duplicate document")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("pipeline stopped")
)
