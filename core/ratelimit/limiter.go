// Package ratelimit bounds the request rate against the vendor API. The
// account-level limits are undocumented and enforcement is an account ban,
// so every network call in the sync path goes through a Limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket with continuous refill: allowance grows at
// rate/per units per second of elapsed wall-clock time, capped at rate.
// The zero value is not usable; use New.
type Limiter struct {
	mu        sync.Mutex
	rate      float64
	per       time.Duration
	allowance float64
	last      time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a Limiter allowing rate acquisitions per period. A fresh
// limiter starts with a full bucket, so the first rate calls pass without
// waiting.
func New(rate int, per time.Duration) *Limiter {
	l := &Limiter{
		rate:      float64(rate),
		per:       per,
		allowance: float64(rate),
		now:       time.Now,
		sleep:     time.Sleep,
	}
	l.last = l.now()
	return l
}

// Acquire blocks until one unit of allowance is available, then consumes it.
// It never fails. When the bucket is short, Acquire sleeps exactly the
// deficit and leaves the bucket empty, so a burst that drains the allowance
// degrades to a steady one-call-per-refill cadence. The mutex is held across
// the sleep: concurrent callers are served in arrival order and can never
// double-spend the same allowance.
func (l *Limiter) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.last)
	l.last = now

	perSecond := l.rate / l.per.Seconds()
	l.allowance += elapsed.Seconds() * perSecond
	if l.allowance > l.rate {
		l.allowance = l.rate
	}

	if l.allowance < 1 {
		deficit := time.Duration((1 - l.allowance) / perSecond * float64(time.Second))
		l.sleep(deficit)
		l.allowance = 0
		return
	}
	l.allowance--
}
