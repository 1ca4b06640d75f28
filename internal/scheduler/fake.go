package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Scheduler for tests. Callbacks fire
// synchronously from Advance, in due-time order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	entries map[int]*fakeEntry
}

type fakeEntry struct {
	due      time.Time
	interval time.Duration // zero for one-shot
	fn       func()
}

// NewFake creates a fake scheduler anchored at the given time.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now, entries: map[int]*fakeEntry{}}
}

// Now returns the fake clock's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After schedules fn once at now+d.
func (f *Fake) After(d time.Duration, fn func()) Cancel {
	return f.add(d, 0, fn)
}

// Every schedules fn at now+d and then every d.
func (f *Fake) Every(d time.Duration, fn func()) Cancel {
	return f.add(d, d, fn)
}

func (f *Fake) add(d, interval time.Duration, fn func()) Cancel {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.entries[id] = &fakeEntry{due: f.now.Add(d), interval: interval, fn: fn}
	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, ok := f.entries[id]
		delete(f.entries, id)
		return ok
	}
}

// Advance moves the clock forward by d, firing due callbacks in order.
// Callbacks run without the scheduler lock held, so they may schedule or
// cancel timers themselves.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		fn := f.popDue(target)
		if fn == nil {
			break
		}
		fn()
	}

	f.mu.Lock()
	if target.After(f.now) {
		f.now = target
	}
	f.mu.Unlock()
}

// popDue advances the clock to the earliest due entry at or before target,
// removes (or reschedules) it, and returns its callback.
func (f *Fake) popDue(target time.Time) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := f.entries[ids[i]], f.entries[ids[j]]
		if a.due.Equal(b.due) {
			return ids[i] < ids[j]
		}
		return a.due.Before(b.due)
	})

	for _, id := range ids {
		entry := f.entries[id]
		if entry.due.After(target) {
			continue
		}
		if entry.due.After(f.now) {
			f.now = entry.due
		}
		if entry.interval > 0 {
			entry.due = entry.due.Add(entry.interval)
		} else {
			delete(f.entries, id)
		}
		return entry.fn
	}
	return nil
}
