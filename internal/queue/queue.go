// Package queue provides the fixed-capacity FIFO used for ready queues.
package queue

import "github.com/me/ossched/pkg/model"

// Bounded is a fixed-capacity FIFO backed by a ring buffer.
// It does no locking; callers must hold an external lock.
type Bounded[T any] struct {
	items []T
	head  int
	size  int
	level int // reported in CapacityError
}

// New creates an empty queue holding at most capacity items.
// It panics if capacity is not positive.
func New[T any](capacity int) *Bounded[T] {
	return NewLevel[T](capacity, 0)
}

// NewLevel is New for a queue that serves one priority level.
func NewLevel[T any](capacity, level int) *Bounded[T] {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	return &Bounded[T]{items: make([]T, capacity), level: level}
}

// Enqueue appends item at the tail. It returns a *model.CapacityError when full.
func (q *Bounded[T]) Enqueue(item T) error {
	if q.size == len(q.items) {
		return &model.CapacityError{Level: q.level, Capacity: len(q.items)}
	}
	q.items[(q.head+q.size)%len(q.items)] = item
	q.size++
	return nil
}

// Dequeue removes and returns the head item, or model.ErrEmpty.
func (q *Bounded[T]) Dequeue() (T, error) {
	var zero T
	if q.size == 0 {
		return zero, model.ErrEmpty
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return item, nil
}

// Peek returns the head item without removing it.
func (q *Bounded[T]) Peek() (T, bool) {
	if q.size == 0 {
		var zero T
		return zero, false
	}
	return q.items[q.head], true
}

// IsEmpty reports whether the queue holds no items.
func (q *Bounded[T]) IsEmpty() bool { return q.size == 0 }

// Size returns the number of queued items.
func (q *Bounded[T]) Size() int { return q.size }

// Cap returns the fixed capacity.
func (q *Bounded[T]) Cap() int { return len(q.items) }

// Items returns the queued items in FIFO order.
func (q *Bounded[T]) Items() []T {
	out := make([]T, 0, q.size)
	for i := 0; i < q.size; i++ {
		out = append(out, q.items[(q.head+i)%len(q.items)])
	}
	return out
}

// Reset drops every item.
func (q *Bounded[T]) Reset() {
	clear(q.items)
	q.head = 0
	q.size = 0
}
