package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock drives a Limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func (c *fakeClock) install(l *Limiter) {
	l.now = func() time.Time { return c.current }
	l.sleep = func(d time.Duration) {
		c.slept = append(c.slept, d)
		c.current = c.current.Add(d)
	}
	l.last = c.current
}

func TestAcquireBurstThenSleep(t *testing.T) {
	clk := &fakeClock{current: time.Unix(1000, 0)}
	l := New(3, time.Minute)
	clk.install(l)

	for i := 0; i < 3; i++ {
		l.Acquire()
		if len(clk.slept) != 0 {
			t.Fatalf("call %d slept on a full bucket", i+1)
		}
	}
	l.Acquire()
	if len(clk.slept) != 1 {
		t.Fatalf("expected fourth call to sleep, slept %d times", len(clk.slept))
	}
	// Empty bucket, no elapsed time: the deficit is one full refill unit.
	want := 20 * time.Second
	if d := clk.slept[0]; d < want-time.Millisecond || d > want+time.Millisecond {
		t.Fatalf("expected ~%v sleep got %v", want, d)
	}
}

func TestAcquireRefillsWithElapsedTime(t *testing.T) {
	clk := &fakeClock{current: time.Unix(1000, 0)}
	l := New(2, time.Minute)
	clk.install(l)

	l.Acquire()
	l.Acquire()
	// One refill unit is 30s at 2 per minute.
	clk.current = clk.current.Add(30 * time.Second)
	l.Acquire()
	if len(clk.slept) != 0 {
		t.Fatalf("acquire after full refill interval should not sleep, slept %v", clk.slept)
	}
	l.Acquire()
	if len(clk.slept) != 1 {
		t.Fatalf("expected drained bucket to sleep")
	}
}

func TestAcquireConservation(t *testing.T) {
	clk := &fakeClock{current: time.Unix(1000, 0)}
	rate, per := 5, time.Minute
	l := New(rate, per)
	clk.install(l)

	start := clk.current
	free := 0
	for i := 0; i < 100; i++ {
		before := len(clk.slept)
		l.Acquire()
		if len(clk.slept) == before {
			free++
		}
		// Uneven caller cadence.
		if i%3 == 0 {
			clk.current = clk.current.Add(7 * time.Second)
		}
	}
	elapsed := clk.current.Sub(start).Seconds()
	bound := float64(rate) + elapsed*float64(rate)/per.Seconds()
	if float64(free) > bound+1 {
		t.Fatalf("%d free acquires exceeds budget %.1f over %.0fs", free, bound, elapsed)
	}
}

func TestAcquireCapsAllowance(t *testing.T) {
	clk := &fakeClock{current: time.Unix(1000, 0)}
	l := New(2, time.Minute)
	clk.install(l)

	// A long idle period must not accumulate more than the bucket capacity.
	clk.current = clk.current.Add(time.Hour)
	l.Acquire()
	l.Acquire()
	l.Acquire()
	if len(clk.slept) != 1 {
		t.Fatalf("expected exactly one sleep after idle period, got %d", len(clk.slept))
	}
}

func TestAcquireConcurrentCallers(t *testing.T) {
	l := New(1000, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Acquire()
			}
		}()
	}
	wg.Wait()
}
