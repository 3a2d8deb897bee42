package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic clock for tests. Each call to Now returns a
// time one Step later than the previous call, starting at Start.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	Start time.Time
	Step  time.Duration
	n     int64
}

// NewStepClock creates a clock starting at 2025-01-01T00:00:00Z advancing
// one second per call.
func NewStepClock() *StepClock {
	return &StepClock{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Step:  time.Second,
	}
}

// Now returns the next time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.Start.Add(time.Duration(c.n) * c.Step)
	c.n++
	return t
}

// Reset rewinds the clock so the next Now returns Start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
