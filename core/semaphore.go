package core

import (
	"context"
	"sync"
	"time"
)

// Semaphore is a binary semaphore. It is created available ("given"),
// like a freshly created RTOS binary semaphore.
//
// The holder name is bookkeeping only; any task may Give.
type Semaphore struct {
	name  string
	token chan struct{}

	mu     sync.Mutex
	holder string
}

// NewSemaphore creates an available binary semaphore.
func NewSemaphore(name string) *Semaphore {
	s := &Semaphore{
		name:  name,
		token: make(chan struct{}, 1),
	}
	s.token <- struct{}{}
	return s
}

// Name returns the semaphore name.
func (s *Semaphore) Name() string {
	return s.name
}

// Take blocks until the semaphore is available or ctx is done.
func (s *Semaphore) Take(ctx context.Context, who string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.token:
		s.setHolder(who)
		return nil
	}
}

// TryTake waits at most timeout for the semaphore. A zero timeout polls once.
func (s *Semaphore) TryTake(who string, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-s.token:
			s.setHolder(who)
			return true
		default:
			return false
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.token:
		s.setHolder(who)
		return true
	case <-t.C:
		return false
	}
}

// Give releases the semaphore. Giving an already available semaphore is
// a no-op and returns false.
func (s *Semaphore) Give() bool {
	s.mu.Lock()
	s.holder = ""
	s.mu.Unlock()

	select {
	case s.token <- struct{}{}:
		return true
	default:
		return false
	}
}

// Holder returns the name passed to the most recent successful take,
// or "" when the semaphore is available.
func (s *Semaphore) Holder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder
}

func (s *Semaphore) setHolder(who string) {
	s.mu.Lock()
	s.holder = who
	s.mu.Unlock()
}
