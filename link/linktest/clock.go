// Package linktest provides a manual clock for tests of timed waits.
package linktest

import (
	"sync"
	"time"
)

// Clock is a fake clock. After advances the clock by the requested duration
// and returns an already-fired channel, so waits complete instantly while
// elapsed time stays exact.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	Sleeps []time.Duration
	// OnAfter, when set, is called after each advance.
	OnAfter func(now time.Time)
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.Sleeps = append(c.Sleeps, d)
	now := c.now
	hook := c.OnAfter
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward without recording a sleep.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
