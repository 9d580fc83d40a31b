package ratequeue

import (
	"errors"
)

// onSettle is installed on every item the scheduler creates. It feeds the
// metrics policy and forwards operation failures to OnOperationError.
func (s *Scheduler) onSettle(id string, st Status, err error) {
	switch {
	case st == Fulfilled:
		s.opts.Metrics.IncFulfilled()
	case errors.Is(err, ErrCancelled):
		s.opts.Metrics.IncCancelled()
	default:
		s.opts.Metrics.IncRejected()
		s.reportOperationError(id, err)
	}
}

// reportOperationError reports an error returned by an operation or
// produced by panic recovery.
//
// Operation errors never stop the scheduler. If no handler is registered,
// the error is only visible through the item's handle.
func (s *Scheduler) reportOperationError(id string, err error) {
	if s.opts.OnOperationError != nil {
		s.opts.OnOperationError(id, err)
	}
}
