package core

import (
	"context"
	"sync"
	"time"
)

// Queue is a fixed-capacity FIFO shared between tasks.
//
// It mirrors the RTOS queue the firmware is designed around: every
// operation is non-blocking, and tasks that want to wait poll with
// ReceiveWithin rather than parking on the queue. Peek is supported,
// which is why this is a ring buffer and not a channel.
type Queue[T any] struct {
	mu    sync.Mutex
	name  string
	buf   []T
	head  int // index of the oldest element
	count int
}

// NewQueue creates a queue holding at most capacity elements.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name: name,
		buf:  make([]T, capacity),
	}
}

// Name returns the queue's name (used in log lines).
func (q *Queue[T]) Name() string {
	return q.name
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// Len returns the number of unread elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// TrySend appends v at the tail. Returns false when the queue is full.
func (q *Queue[T]) TrySend(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
	return true
}

// SendToFront inserts v at the head so it is the next element peeked or
// received. Returns false when the queue is full.
func (q *Queue[T]) SendToFront(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.buf) {
		return false
	}
	q.head = (q.head + len(q.buf) - 1) % len(q.buf)
	q.buf[q.head] = v
	q.count++
	return true
}

// Push appends v at the tail, discarding the oldest element when the
// queue is full. Returns true if an element was discarded.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := false
	if q.count == len(q.buf) {
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		dropped = true
	}
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
	return dropped
}

// TryReceive removes and returns the head element.
func (q *Queue[T]) TryReceive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.count == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// TryPeek returns the head element without removing it.
func (q *Queue[T]) TryPeek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// Reset discards every unread element.
func (q *Queue[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head = 0
	q.count = 0
}

// RemoveFunc deletes every element for which match returns true,
// preserving the order of the rest. Returns the number removed.
func (q *Queue[T]) RemoveFunc(match func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := make([]T, 0, q.count)
	for i := 0; i < q.count; i++ {
		v := q.buf[(q.head+i)%len(q.buf)]
		if !match(v) {
			kept = append(kept, v)
		}
	}
	removed := q.count - len(kept)

	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	copy(q.buf, kept)
	q.head = 0
	q.count = len(kept)
	return removed
}

// Snapshot returns a copy of the unread elements, oldest first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, q.count)
	for i := range out {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// ReceiveWithin polls the queue up to attempts times, sleeping interval
// between misses. It is the bounded try-receive used where a task is
// willing to wait a little for a message but must never block forever.
func (q *Queue[T]) ReceiveWithin(ctx context.Context, attempts int, interval time.Duration) (T, bool) {
	for i := 0; i < attempts; i++ {
		if v, ok := q.TryReceive(); ok {
			return v, true
		}
		if i == attempts-1 {
			break
		}
		if err := Delay(ctx, interval); err != nil {
			break
		}
	}
	var zero T
	return zero, false
}
