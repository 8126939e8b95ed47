// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"slices"
	"sync"
	"time"
)

type (
	// FakeClock implements a manually controlled clock for testing.
	// Time only advances when Advance() is called, or on every After() call
	// when the clock was created with NewAutoClock.
	FakeClock struct {
		current time.Time
		auto    bool
		mu      sync.Mutex
		waiters []waiter
		waits   []time.Duration
	}

	// waiter tracks a pending After() call.
	waiter struct {
		target time.Time
		ch     chan time.Time
	}
)

// NewFakeClock creates a FakeClock initialized to the given time.
// If initial is zero, defaults to a fixed reference time for reproducibility.
func NewFakeClock(initial time.Time) *FakeClock {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &FakeClock{current: initial}
}

// NewAutoClock creates a FakeClock whose After() advances time by the
// requested duration and fires at once. It lets sequential code that sleeps
// run without goroutines while recording every wait.
func NewAutoClock() *FakeClock {
	c := NewFakeClock(time.Time{})
	c.auto = true
	return c
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives the time when the target time is reached.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	if c.auto {
		c.current = c.current.Add(d)
		ch <- c.current
		c.notifyWaiters()
		return ch
	}

	c.waiters = append(c.waiters, waiter{target: c.current.Add(d), ch: ch})
	return ch
}

// Advance moves the fake time forward by d, firing due waiters.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	c.notifyWaiters()
}

// Pending returns the number of After() calls still waiting.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Waits returns every duration passed to After(), in call order.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.waits)
}

// Elapsed returns the sum of all requested waits.
func (c *FakeClock) Elapsed() time.Duration {
	var total time.Duration
	for _, d := range c.Waits() {
		total += d
	}
	return total
}

// notifyWaiters fires every waiter whose target has been reached.
// Must be called with mu held.
func (c *FakeClock) notifyWaiters() {
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !c.current.Before(w.target) {
			select {
			case w.ch <- c.current:
			default:
			}
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
}
