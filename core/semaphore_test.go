package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSemaphoreStartsAvailable(t *testing.T) {
	s := NewSemaphore("own")
	if !s.TryTake("a", 0) {
		t.Fatal("new semaphore was not available")
	}
	if s.Holder() != "a" {
		t.Errorf("Expected holder a, got %q", s.Holder())
	}
	if s.TryTake("b", 0) {
		t.Error("semaphore taken twice")
	}
	if !s.Give() {
		t.Error("Give on held semaphore returned false")
	}
	if s.Give() {
		t.Error("Give on available semaphore returned true")
	}
	if s.Holder() != "" {
		t.Errorf("Expected no holder, got %q", s.Holder())
	}
}

func TestSemaphoreTryTakeTimeout(t *testing.T) {
	s := NewSemaphore("own")
	s.TryTake("a", 0)

	start := time.Now()
	if s.TryTake("b", 5*time.Millisecond) {
		t.Error("TryTake succeeded while held")
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("TryTake returned before its timeout")
	}
}

func TestSemaphoreTakeCancelled(t *testing.T) {
	s := NewSemaphore("own")
	s.TryTake("a", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := s.Take(ctx, "b"); err == nil {
		t.Error("Take returned nil on cancelled context")
	}
}

func TestSemaphoreMutualExclusion(t *testing.T) {
	s := NewSemaphore("own")
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := s.Take(ctx, "worker"); err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(10 * time.Microsecond)

				mu.Lock()
				inside--
				mu.Unlock()
				s.Give()
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("Expected at most one holder, saw %d", maxSeen)
	}
}
