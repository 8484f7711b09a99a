package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestCounterThrottlesWithinInterval(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCounter(time.Minute).WithClock(func() time.Time { return now })

	if total, ok := c.Inc(); !ok || total != 1 {
		t.Fatalf("first increment should log, got total=%d ok=%v", total, ok)
	}
	if _, ok := c.Inc(); ok {
		t.Fatalf("second increment inside the interval should be throttled")
	}
	now = now.Add(time.Minute)
	if total, ok := c.Inc(); !ok || total != 3 {
		t.Fatalf("increment after the interval should log, got total=%d ok=%v", total, ok)
	}
	if c.Total() != 3 {
		t.Fatalf("expected total 3, got %d", c.Total())
	}
}

func TestCounterWithoutIntervalAlwaysLogs(t *testing.T) {
	c := NewCounter(0)
	for i := 0; i < 3; i++ {
		if _, ok := c.Inc(); !ok {
			t.Fatalf("increment %d should log", i)
		}
	}
}

func TestCounterConcurrentSingleWinner(t *testing.T) {
	c := NewCounter(time.Hour)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Inc(); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 1 || c.Total() != 32 {
		t.Fatalf("expected one allowed log of 32, got allowed=%d total=%d", allowed, c.Total())
	}
}

func TestNilCounter(t *testing.T) {
	var c *Counter
	if _, ok := c.Inc(); ok {
		t.Fatalf("nil counter should never allow logging")
	}
	if c.Total() != 0 {
		t.Fatalf("nil counter total should be zero")
	}
}
