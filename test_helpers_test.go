package ratequeue_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	rq "github.com/azargarov/ratequeue"
	"github.com/jonboulle/clockwork"
)

const (
	testInterval = time.Second
	testTimeout  = 2 * time.Second
)

func valueOp[T any](v T) rq.Operation[T] {
	return func(context.Context) (T, error) { return v, nil }
}

func newFakeScheduler(t *testing.T, opts rq.Options) (*rq.Scheduler, *clockwork.FakeClock) {
	t.Helper()

	fc := clockwork.NewFakeClock()
	opts.Clock = fc
	if opts.IntervalLength == 0 {
		opts.IntervalLength = testInterval
	}
	s := rq.New(opts)
	t.Cleanup(s.Terminate)
	return s, fc
}

func mustSchedule[T any](t *testing.T, s *rq.Scheduler, op rq.Operation[T], prio rq.Priority) *rq.WorkItem[T] {
	t.Helper()

	item, err := rq.Schedule(context.Background(), s, op, prio)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return item
}

func await[T any](t *testing.T, item *rq.WorkItem[T]) (T, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	v, err := item.Await(ctx)
	if err == context.DeadlineExceeded {
		t.Fatalf("item %s did not settle in time", item.ID())
	}
	return v, err
}

// tick waits until the scheduler has armed its interval timer and then
// moves the fake clock past it.
func tick(t *testing.T, fc *clockwork.FakeClock) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("interval timer was never armed: %v", err)
	}
	fc.Advance(testInterval)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// settle gives goroutines a moment to run so that tests can assert that
// nothing else happens.
func settle() { time.Sleep(20 * time.Millisecond) }
