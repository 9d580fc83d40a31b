// Package ratequeue provides an in-process scheduler that runs operations
// under two limits at once: how many may be in flight, and how many may
// start within each fixed time window.
//
// It is meant for coordinating bursts of background work against external
// limits, such as calls to a rate-limited API, without overrunning them.
//
// Architecture overview
//
// The scheduler is composed of four small pieces:
//
//   1. Pending queue (Deque)
//      A growable double-ended ring buffer. Normal submissions are
//      appended at the back, high priority submissions are inserted at
//      the front.
//
//   2. Work items (WorkItem)
//      Each operation is wrapped in an item that runs it at most once and
//      settles exactly once, either with a value or with an error. The item
//      is also the caller's handle: Await blocks until it settles.
//
//   3. Admission (Scheduler)
//      Every submission, every completion and every interval tick runs an
//      admission pass: items are popped from the front and started while
//      both ceilings allow it. A window ends once an interval has passed
//      since it opened; a single timer wakes the scheduler while work is
//      still waiting.
//
//   4. Retries (WithRetry)
//      A decorator that retries a failing operation as long as a policy
//      callback returns a delay. Wrap before scheduling to retry within a
//      single admission, or schedule each attempt to have retries count
//      against the interval ceiling.
//
// Lifecycle
//
// Pause stops admission and the timer; Resume restarts the timer. Terminate
// rejects everything still queued with ErrCancelled and refuses new work
// with ErrQueueTerminated until Reset. None of these interrupt operations
// that are already running.
//
// Example
//
//	s := ratequeue.New(ratequeue.Options{
//		ConcurrencyCeiling:       4,
//		IntervalAdmissionCeiling: 10,
//		IntervalLength:           time.Second,
//	})
//	item, err := ratequeue.Schedule(ctx, s, fetch, ratequeue.PriorityNormal)
//	if err != nil {
//		return err
//	}
//	body, err := item.Await(ctx)
//
// Scope
//
// The scheduler coordinates work submitted to a single in-memory instance.
// It is not a distributed rate limiter and does not persist pending work.
package ratequeue
