// Package scheduler owns every timer the quest engine sets. Game code never
// touches time.AfterFunc directly; it asks the scheduler for a handle it can
// cancel when the owning encounter resolves early.
package scheduler

import (
	"sync"
	"time"
)

// Cancel stops a scheduled callback. It reports whether the callback was
// stopped before it fired. Cancelling twice is safe.
type Cancel func() bool

// Scheduler fires callbacks after a delay or on a repeating interval.
type Scheduler interface {
	// After invokes fn once after d elapses.
	After(d time.Duration, fn func()) Cancel
	// Every invokes fn repeatedly every d until cancelled.
	Every(d time.Duration, fn func()) Cancel
	// Now returns the scheduler's view of the current time.
	Now() time.Time
}

// Real is the production Scheduler backed by the wall clock.
type Real struct{}

// NewReal creates a wall-clock scheduler.
func NewReal() *Real {
	return &Real{}
}

// Now returns the current wall-clock time.
func (r *Real) Now() time.Time {
	return time.Now().UTC()
}

// After invokes fn once after d elapses.
func (r *Real) After(d time.Duration, fn func()) Cancel {
	timer := time.AfterFunc(d, fn)
	return func() bool {
		return timer.Stop()
	}
}

// Every invokes fn every d until the returned Cancel is called.
func (r *Real) Every(d time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() bool {
		stopped := false
		once.Do(func() {
			ticker.Stop()
			close(done)
			stopped = true
		})
		return stopped
	}
}
