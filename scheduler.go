package ratequeue

import (
	"context"
	"sync"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/jonboulle/clockwork"
)

const initialQueueCapacity = 64

// Scheduler admits queued operations under a concurrency ceiling and an
// optional per-interval admission ceiling.
//
// All scheduler state, the pending queue included, is guarded by mu. At
// most one admission decision is made at any instant. Operations run on
// their own goroutines outside the lock.
type Scheduler struct {
	mu   sync.Mutex
	opts Options

	queue *Deque[task]

	paused     bool
	terminated bool

	inProgress       int
	intervalAdmitted int
	// windowStart is when intervalAdmitted was last zeroed.
	windowStart time.Time

	// timer is the single live interval timer, nil when none is armed.
	// timerGen identifies it so that a tick from a stopped timer that
	// already fired is ignored.
	timer    clockwork.Timer
	timerGen uint64

	// idle is closed when inProgress drops back to zero.
	idle chan struct{}
}

// Stats is a point-in-time snapshot of scheduler state.
type Stats struct {
	Pending          int
	InProgress       int
	IntervalAdmitted int
	Paused           bool
	Terminated       bool
}

// New creates a scheduler. Zero option values are replaced with defaults.
func New(opts Options) *Scheduler {
	opts.FillDefaults()
	return &Scheduler{
		opts:        opts,
		queue:       NewDeque[task](initialQueueCapacity),
		windowStart: opts.Clock.Now(),
	}
}

// Schedule wraps op in a work item, queues it with the given priority and
// runs an admission pass. The returned item settles with the outcome of op.
//
// Schedule fails with ErrInvalidOperation for a nil op and with
// ErrQueueTerminated after Terminate.
func Schedule[T any](ctx context.Context, s *Scheduler, op Operation[T], prio Priority) (*WorkItem[T], error) {
	item, err := NewWorkItem(ctx, op)
	if err != nil {
		return nil, err
	}
	item.onSettle = s.onSettle
	if err := s.enqueue(item, prio); err != nil {
		return nil, err
	}
	lg.FromContext(item.ctx).Info("operation scheduled",
		lg.String("item", item.ID()),
		lg.String("priority", prio.String()),
	)
	return item, nil
}

func (s *Scheduler) enqueue(t task, prio Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return ErrQueueTerminated
	}
	if prio == PriorityHigh {
		s.queue.PushFront(t)
	} else {
		s.queue.PushBack(t)
	}
	s.opts.Metrics.IncScheduled()
	s.admitLocked()
	return nil
}

// admitLocked starts as many queued items as both ceilings allow and arms
// the interval timer if work is left behind.
// Must be called with s.mu held.
func (s *Scheduler) admitLocked() {
	if s.paused || s.terminated {
		return
	}
	s.rollWindowLocked()
	for s.queue.Len() > 0 &&
		s.inProgress < s.opts.ConcurrencyCeiling &&
		!s.intervalFullLocked() {

		t, _ := s.queue.PopFront()
		s.inProgress++
		s.intervalAdmitted++
		if s.idle == nil {
			s.idle = make(chan struct{})
		}
		s.opts.Metrics.IncAdmitted()
		go s.run(t)
	}
	if s.queue.Len() > 0 {
		s.armTimerLocked()
	}
}

// rollWindowLocked opens a new admission window once a full interval has
// passed since the current one started, whether or not a tick was armed.
// Must be called with s.mu held.
func (s *Scheduler) rollWindowLocked() {
	now := s.opts.Clock.Now()
	if now.Sub(s.windowStart) < s.opts.IntervalLength {
		return
	}
	s.intervalAdmitted = 0
	s.windowStart = now
}

func (s *Scheduler) intervalFullLocked() bool {
	c := s.opts.IntervalAdmissionCeiling
	return c > 0 && s.intervalAdmitted >= c
}

// run executes an admitted item and hands its slot back.
func (s *Scheduler) run(t task) {
	t.Execute()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress--
	if s.inProgress == 0 && s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
	s.admitLocked()
}

// armTimerLocked schedules the interval tick unless one is already pending.
// Must be called with s.mu held.
func (s *Scheduler) armTimerLocked() {
	if s.timer != nil {
		return
	}
	s.timerGen++
	gen := s.timerGen
	s.timer = s.opts.Clock.AfterFunc(s.opts.IntervalLength, func() { s.tick(gen) })
}

// stopTimerLocked cancels the pending tick, if any.
// Must be called with s.mu held.
func (s *Scheduler) stopTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
}

// tick runs an admission pass once the interval timer fires. The window
// itself is rolled by admitLocked.
func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil || gen != s.timerGen {
		return
	}
	s.timer = nil
	s.admitLocked()
}

// Pause stops admitting new items. Operations already in flight are not
// affected. Pausing a paused scheduler does nothing.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.stopTimerLocked()
	s.paused = true
}

// Resume lifts a pause. Pending items are admitted from the next interval
// tick on. Resuming a running scheduler does nothing.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	if s.queue.Len() > 0 && !s.terminated {
		s.armTimerLocked()
	}
}

// Terminate stops the timer and rejects every pending item with
// ErrCancelled. Operations already in flight run to completion.
// Terminating twice does nothing.
func (s *Scheduler) Terminate() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	dropped := make([]task, 0, s.queue.Len())
	for {
		t, ok := s.queue.PopFront()
		if !ok {
			break
		}
		dropped = append(dropped, t)
	}
	s.terminated = true
	s.mu.Unlock()

	for _, t := range dropped {
		t.cancel(ErrCancelled)
	}
	lg.FromContext(s.opts.LogContext).Info("scheduler terminated",
		lg.Int("cancelled", len(dropped)),
	)
}

// Reset makes a terminated scheduler accept work again with an empty
// pending queue. It does nothing unless the scheduler is terminated.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminated {
		return
	}
	s.terminated = false
	s.queue = NewDeque[task](initialQueueCapacity)
	s.admitLocked()
	lg.FromContext(s.opts.LogContext).Info("scheduler reset")
}

// Shutdown terminates the scheduler and waits for operations in flight to
// finish. It returns ctx.Err() if ctx is done first.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Terminate()

	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued items not yet admitted.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// InProgress returns the number of operations currently executing.
func (s *Scheduler) InProgress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress
}

func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) IsTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Stats returns a consistent snapshot of all counters and flags.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Pending:          s.queue.Len(),
		InProgress:       s.inProgress,
		IntervalAdmitted: s.intervalAdmitted,
		Paused:           s.paused,
		Terminated:       s.terminated,
	}
}
