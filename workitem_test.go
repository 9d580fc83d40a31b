package ratequeue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func constOp[T any](v T) Operation[T] {
	return func(context.Context) (T, error) { return v, nil }
}

func TestNewWorkItemNilOperation(t *testing.T) {
	if _, err := NewWorkItem[int](context.Background(), nil); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("NewWorkItem(nil) err = %v; want ErrInvalidOperation", err)
	}
}

func TestWorkItemExecuteResolves(t *testing.T) {
	w, err := NewWorkItem(context.Background(), constOp(42))
	if err != nil {
		t.Fatalf("NewWorkItem: %v", err)
	}
	if w.ID() == "" {
		t.Fatal("empty item ID")
	}
	if _, ok, _ := w.Result(); ok {
		t.Fatal("Result reported settled before Execute")
	}

	w.Execute()

	v, err := w.Await(context.Background())
	if err != nil || v != 42 {
		t.Fatalf("Await = %d,%v; want 42,nil", v, err)
	}
	if st := w.Status(); st != Fulfilled {
		t.Fatalf("status = %s; want fulfilled", st)
	}
}

func TestWorkItemExecuteRejectsVerbatim(t *testing.T) {
	boom := errors.New("boom")
	w, _ := NewWorkItem(context.Background(), func(context.Context) (int, error) {
		return 0, boom
	})
	w.Execute()

	_, ok, err := w.Result()
	if !ok {
		t.Fatal("item not settled after Execute")
	}
	if err != boom {
		t.Fatalf("err = %v; want the operation error unchanged", err)
	}
	if st := w.Status(); st != Rejected {
		t.Fatalf("status = %s; want rejected", st)
	}
}

func TestWorkItemExecuteOnce(t *testing.T) {
	var calls atomic.Int32
	w, _ := NewWorkItem(context.Background(), func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	})

	w.Execute()
	w.Execute()

	if got := calls.Load(); got != 1 {
		t.Fatalf("operation called %d times; want 1", got)
	}
}

func TestWorkItemExecuteAfterReject(t *testing.T) {
	var calls atomic.Int32
	w, _ := NewWorkItem(context.Background(), func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	w.reject(nil)
	w.Execute()

	if got := calls.Load(); got != 0 {
		t.Fatalf("operation called %d times after reject; want 0", got)
	}
	if _, err := w.Await(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v; want ErrCancelled", err)
	}
}

func TestWorkItemFirstSettleWins(t *testing.T) {
	var settles atomic.Int32
	w, _ := NewWorkItem(context.Background(), constOp(0))
	w.onSettle = func(string, Status, error) { settles.Add(1) }

	w.resolve(1)
	w.resolve(2)
	w.reject(errors.New("late"))
	w.Execute()

	v, err := w.Await(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("Await = %d,%v; want 1,nil", v, err)
	}
	if got := settles.Load(); got != 1 {
		t.Fatalf("settle hook called %d times; want 1", got)
	}

	r, _ := NewWorkItem(context.Background(), constOp(0))
	first := errors.New("first")
	r.reject(first)
	r.resolve(5)
	if _, err := r.Await(context.Background()); err != first {
		t.Fatalf("err = %v; want first rejection", err)
	}
}

func TestWorkItemConcurrentSettle(t *testing.T) {
	var settles atomic.Int32
	w, _ := NewWorkItem(context.Background(), constOp(0))
	w.onSettle = func(string, Status, error) { settles.Add(1) }

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				w.resolve(i)
			} else {
				w.reject(errors.New("x"))
			}
		}(i)
	}
	wg.Wait()

	if got := settles.Load(); got != 1 {
		t.Fatalf("settle hook called %d times; want 1", got)
	}
	if !w.Status().Terminal() {
		t.Fatalf("status = %s; want terminal", w.Status())
	}
}

func TestWorkItemPanicRejects(t *testing.T) {
	w, _ := NewWorkItem(context.Background(), func(context.Context) (int, error) {
		panic("boom")
	})
	w.Execute()

	if _, err := w.Await(context.Background()); !errors.Is(err, ErrOperationPanicked) {
		t.Fatalf("err = %v; want ErrOperationPanicked", err)
	}
}

func TestWorkItemAwaitContext(t *testing.T) {
	w, _ := NewWorkItem(context.Background(), constOp(0))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := w.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Await err = %v; want deadline exceeded", err)
	}
	if st := w.Status(); st != Pending {
		t.Fatalf("status = %s; want pending", st)
	}
}

func TestWorkItemPassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	w, _ := NewWorkItem(ctx, func(ctx context.Context) (string, error) {
		s, _ := ctx.Value(key{}).(string)
		return s, nil
	})
	w.Execute()

	if v, _ := w.Await(context.Background()); v != "v" {
		t.Fatalf("operation saw value %q; want %q", v, "v")
	}
}
