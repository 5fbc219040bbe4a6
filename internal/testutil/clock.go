package testutil

import (
	"sync"
	"time"
)

// Epoch is the first time a StepClock returns.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic wall clock: every call to Now advances it by
// a fixed step, so timestamps in reports and the ledger are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepClock returns a clock starting at Epoch. A zero step returns Epoch
// forever.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{next: Epoch, step: step}
}

// Now returns the current time and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// Reset rewinds the clock to Epoch.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = Epoch
}
