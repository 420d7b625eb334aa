package testutil

import (
	"sync"
	"time"
)

// StepClock is a wall clock for tests. Every call to Now returns the
// previous instant plus Step, starting at Start.
//
// Pass clock.Now wherever a component accepts a func() time.Time.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
	init bool
}

// NewStepClock returns a clock whose first Now is start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{now: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.init {
		c.init = true
		return c.now
	}
	c.now = c.now.Add(c.step)
	return c.now
}

// Advance moves the clock forward by d without returning a value.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
