package ratequeue

import (
	"errors"
)

var (
	// ErrInvalidOperation is returned when a nil operation or a nil retry
	// policy is supplied.
	ErrInvalidOperation = errors.New("ratequeue: operation or policy is nil")

	// ErrQueueTerminated is returned by Schedule once the scheduler has
	// been terminated. Reset makes the scheduler accept work again.
	ErrQueueTerminated = errors.New("ratequeue: queue has been terminated")

	// ErrCancelled is the rejection reason of items that were discarded
	// before they ran, e.g. by Terminate.
	ErrCancelled = errors.New("ratequeue: task cancelled")

	// ErrOperationPanicked wraps the value recovered from a panicking
	// operation.
	ErrOperationPanicked = errors.New("ratequeue: operation panicked")
)
