package core

import (
	"context"
	"sync"
)

// Latch is a cooperative suspend signal. While engaged, Wait blocks;
// Release wakes every waiter. It replaces direct task suspend/resume:
// the suspended task parks itself on the latch, and the task that wants
// it running again releases the latch.
//
// Engage and Release are idempotent.
type Latch struct {
	mu      sync.Mutex
	engaged bool
	open    chan struct{} // closed while released
}

// NewLatch returns a released latch.
func NewLatch() *Latch {
	open := make(chan struct{})
	close(open)
	return &Latch{open: open}
}

// Engage makes subsequent Wait calls block.
func (l *Latch) Engage() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engaged {
		return
	}
	l.engaged = true
	l.open = make(chan struct{})
}

// Release wakes all waiters.
func (l *Latch) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.engaged {
		return
	}
	l.engaged = false
	close(l.open)
}

// Engaged reports whether the latch is engaged.
func (l *Latch) Engaged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engaged
}

// Wait blocks while the latch is engaged or until ctx is done.
func (l *Latch) Wait(ctx context.Context) error {
	l.mu.Lock()
	open := l.open
	l.mu.Unlock()

	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
