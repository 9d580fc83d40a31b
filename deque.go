package ratequeue

const (
	minDequeCapacity = 16
)

// Deque is a growable double-ended queue backed by a circular buffer.
//
// Items pushed at the same end keep their relative order. No ordering is
// promised between items pushed at opposite ends beyond what follows from
// their positions in the buffer.
//
// The zero value is an empty deque ready to use. Deque is not safe for
// concurrent use; the Scheduler serializes all access under its own mutex.
type Deque[T any] struct {
	buf  []T // circular buffer, len(buf) is the capacity
	head int // index of the front item
	size int // number of items currently buffered
}

// NewDeque creates a deque with room for at least capacity items before
// the first reallocation.
func NewDeque[T any](capacity int) *Deque[T] {
	if capacity < minDequeCapacity {
		capacity = minDequeCapacity
	}
	return &Deque[T]{buf: make([]T, capacity)}
}

// Len returns the number of items currently in the deque.
func (d *Deque[T]) Len() int { return d.size }

// PushBack appends an item at the back.
func (d *Deque[T]) PushBack(v T) {
	d.grow()
	d.buf[d.index(d.size)] = v
	d.size++
}

// PushFront inserts an item at the front.
func (d *Deque[T]) PushFront(v T) {
	d.grow()
	d.head = d.index(len(d.buf) - 1)
	d.buf[d.head] = v
	d.size++
}

// PopFront removes and returns the front item.
//
// If the deque is empty, returns the zero value and false.
func (d *Deque[T]) PopFront() (T, bool) {
	var zero T
	if d.size == 0 {
		return zero, false
	}
	v := d.buf[d.head]
	d.buf[d.head] = zero
	d.head = d.index(1)
	d.size--
	return v, true
}

// PopBack removes and returns the back item.
//
// If the deque is empty, returns the zero value and false.
func (d *Deque[T]) PopBack() (T, bool) {
	var zero T
	if d.size == 0 {
		return zero, false
	}
	i := d.index(d.size - 1)
	v := d.buf[i]
	d.buf[i] = zero
	d.size--
	return v, true
}

// PeekFront returns the front item without removing it.
func (d *Deque[T]) PeekFront() (T, bool) {
	if d.size == 0 {
		var zero T
		return zero, false
	}
	return d.buf[d.head], true
}

// PeekBack returns the back item without removing it.
func (d *Deque[T]) PeekBack() (T, bool) {
	if d.size == 0 {
		var zero T
		return zero, false
	}
	return d.buf[d.index(d.size-1)], true
}

// Clear drops all items. Items are not settled or otherwise notified;
// callers holding work items must settle them first.
func (d *Deque[T]) Clear() {
	clear(d.buf)
	d.head = 0
	d.size = 0
}

// index maps a logical offset from head to a buffer position.
func (d *Deque[T]) index(off int) int {
	return (d.head + off) % len(d.buf)
}

// grow doubles the buffer when it is full, unrolling the ring so the
// front item lands at position zero.
func (d *Deque[T]) grow() {
	if d.size < len(d.buf) {
		return
	}
	buf := make([]T, max(len(d.buf)*2, minDequeCapacity))
	n := copy(buf, d.buf[d.head:])
	copy(buf[n:], d.buf[:d.head])
	d.buf = buf
	d.head = 0
}
