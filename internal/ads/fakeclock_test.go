package ads

import (
	"sort"
	"sync"
	"time"
)

// fakeClock fires timers in deadline order, ties broken by creation order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers []*fakeTimer
	// drift moves now forward after each AfterFunc, like real time passing inside a callback.
	drift time.Duration
}

type fakeTimer struct {
	clock *fakeClock
	id    int
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{clock: c, id: c.nextID, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	c.now = c.now.Add(c.drift)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward by d, running every timer that comes due on the way.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var live []*fakeTimer
		for _, t := range c.timers {
			if !t.done {
				live = append(live, t)
			}
		}
		c.timers = live
		sort.SliceStable(live, func(i, j int) bool {
			if live[i].at.Equal(live[j].at) {
				return live[i].id < live[j].id
			}
			return live[i].at.Before(live[j].at)
		})
		if len(live) == 0 || live[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := live[0]
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// pendingTimers reports timers that have not fired or been stopped.
func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}
