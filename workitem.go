package ratequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"
)

// Operation is a unit of work handed to the scheduler. It receives the
// context passed to Schedule; the scheduler itself never cancels it.
type Operation[T any] func(ctx context.Context) (T, error)

// Status is the lifecycle state of a WorkItem.
type Status int32

const (
	Pending Status = iota
	Executing
	Fulfilled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Executing:
		return "executing"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool { return s == Fulfilled || s == Rejected }

// settleFunc is notified exactly once when an item settles.
type settleFunc func(id string, st Status, err error)

// task is the type-erased view of a WorkItem held by the scheduler queue.
type task interface {
	ID() string
	Execute()
	cancel(reason error)
}

// WorkItem wraps one operation together with its settle-once result.
//
// The item doubles as the caller's handle: Await, Done and Result observe
// the outcome. The result is written exactly once; the first resolve or
// reject wins and every later attempt is ignored.
type WorkItem[T any] struct {
	id  string
	op  Operation[T]
	ctx context.Context

	mu     sync.Mutex
	status Status
	value  T
	err    error
	done   chan struct{}

	onSettle settleFunc
}

// NewWorkItem wraps op. It fails with ErrInvalidOperation if op is nil.
func NewWorkItem[T any](ctx context.Context, op Operation[T]) (*WorkItem[T], error) {
	if op == nil {
		return nil, ErrInvalidOperation
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &WorkItem[T]{
		id:   uuid.NewString(),
		op:   op,
		ctx:  ctx,
		done: make(chan struct{}),
	}, nil
}

// ID returns the unique identifier assigned at construction.
func (w *WorkItem[T]) ID() string { return w.id }

// Status returns the current lifecycle state.
func (w *WorkItem[T]) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Done returns a channel closed once the item has settled.
func (w *WorkItem[T]) Done() <-chan struct{} { return w.done }

// Await blocks until the item settles or ctx is done.
func (w *WorkItem[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-w.done:
		return w.value, w.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while the item
// has not settled yet.
func (w *WorkItem[T]) Result() (v T, ok bool, err error) {
	select {
	case <-w.done:
		return w.value, true, w.err
	default:
		return v, false, nil
	}
}

// Execute runs the operation once and settles the item with its outcome.
// Calling Execute on an item that is no longer pending does nothing.
func (w *WorkItem[T]) Execute() {
	w.mu.Lock()
	if w.status != Pending {
		w.mu.Unlock()
		return
	}
	w.status = Executing
	w.mu.Unlock()

	v, err := w.invoke()
	if err != nil {
		w.reject(err)
		return
	}
	w.resolve(v)
}

func (w *WorkItem[T]) invoke() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			lg.FromContext(w.ctx).Error("operation panicked",
				lg.String("item", w.id),
				lg.Any("panic", r),
			)
			err = fmt.Errorf("%w: %v", ErrOperationPanicked, r)
		}
	}()
	return w.op(w.ctx)
}

func (w *WorkItem[T]) resolve(v T) {
	w.settle(Fulfilled, v, nil)
}

// reject settles the item with reason. A nil reason means the item was
// discarded and becomes ErrCancelled.
func (w *WorkItem[T]) reject(reason error) {
	if reason == nil {
		reason = ErrCancelled
	}
	var zero T
	w.settle(Rejected, zero, reason)
}

func (w *WorkItem[T]) cancel(reason error) { w.reject(reason) }

func (w *WorkItem[T]) settle(st Status, v T, err error) {
	w.mu.Lock()
	if w.status.Terminal() {
		w.mu.Unlock()
		return
	}
	w.status = st
	w.value = v
	w.err = err
	hook := w.onSettle
	w.mu.Unlock()

	if st == Rejected && !errors.Is(err, ErrCancelled) {
		lg.FromContext(w.ctx).Warn("operation failed",
			lg.String("item", w.id),
			lg.Any("error", err),
		)
	}
	// hooks observe the outcome before any waiter is released
	if hook != nil {
		hook(w.id, st, err)
	}
	close(w.done)
}
