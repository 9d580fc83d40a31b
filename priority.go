package ratequeue

// Priority selects the end of the pending queue a new item is inserted at.
type Priority uint8

const (
	// PriorityNormal appends to the back of the queue. Normal items are
	// admitted in submission order.
	PriorityNormal Priority = iota

	// PriorityHigh inserts at the front of the queue, ahead of every queued
	// normal item. Among themselves, high priority items behave as a stack:
	// the latest submission is admitted first.
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}
