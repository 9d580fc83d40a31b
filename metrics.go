package ratequeue

import (
	"sync/atomic"
)

// MetricsPolicy defines hooks used by the scheduler to report queueing and
// execution activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {

	// IncScheduled increments the counter of accepted submissions.
	IncScheduled()

	// IncAdmitted increments the counter of items moved from the pending
	// queue into execution.
	IncAdmitted()

	// IncFulfilled increments the counter of items settled with a value.
	IncFulfilled()

	// IncRejected increments the counter of items whose operation failed.
	IncRejected()

	// IncCancelled increments the counter of items discarded before they ran.
	IncCancelled()
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	scheduled atomic.Uint64
	admitted  atomic.Uint64

	_ [48]byte // padding to avoid false sharing

	fulfilled atomic.Uint64
	rejected  atomic.Uint64
	cancelled atomic.Uint64
}

func (m *AtomicMetrics) IncScheduled() { m.scheduled.Add(1) }
func (m *AtomicMetrics) IncAdmitted()  { m.admitted.Add(1) }
func (m *AtomicMetrics) IncFulfilled() { m.fulfilled.Add(1) }
func (m *AtomicMetrics) IncRejected()  { m.rejected.Add(1) }
func (m *AtomicMetrics) IncCancelled() { m.cancelled.Add(1) }

// Scheduled returns the total number of accepted submissions.
func (m *AtomicMetrics) Scheduled() uint64 { return m.scheduled.Load() }

// Admitted returns the total number of admitted items.
func (m *AtomicMetrics) Admitted() uint64 { return m.admitted.Load() }

// Fulfilled returns the total number of items settled with a value.
func (m *AtomicMetrics) Fulfilled() uint64 { return m.fulfilled.Load() }

// Rejected returns the total number of items whose operation failed.
func (m *AtomicMetrics) Rejected() uint64 { return m.rejected.Load() }

// Cancelled returns the total number of items discarded before running.
func (m *AtomicMetrics) Cancelled() uint64 { return m.cancelled.Load() }

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (NoopMetrics) IncScheduled() {}
func (NoopMetrics) IncAdmitted()  {}
func (NoopMetrics) IncFulfilled() {}
func (NoopMetrics) IncRejected()  {}
func (NoopMetrics) IncCancelled() {}
