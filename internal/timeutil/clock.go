// Package timeutil provides a testable abstraction over the clock used to
// time pipeline stages.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Stopwatch measures a single stage against a Clock.
type Stopwatch struct {
	clock Clock
	start time.Time
}

// StartStopwatch starts measuring with the given clock. A nil clock falls
// back to RealClock.
func StartStopwatch(c Clock) Stopwatch {
	if c == nil {
		c = RealClock{}
	}
	return Stopwatch{clock: c, start: c.Now()}
}

// Elapsed returns the time since the stopwatch was started.
func (s Stopwatch) Elapsed() time.Duration {
	return s.clock.Since(s.start)
}

// MockClock is a manually controlled clock for testing.
//
// When a step is configured every call to Now advances the clock by that
// step after reading it, so a stage bracketed by two reads always measures
// exactly one step.
type MockClock struct {
	mu    sync.Mutex
	now   time.Time
	step  time.Duration
	reads int
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// NewSteppingMockClock creates a MockClock that advances by step on every read.
func NewSteppingMockClock(t time.Time, step time.Duration) *MockClock {
	return &MockClock{now: t, step: step}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	c.reads++
	return now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t. It counts as a read.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Reads returns how many times the clock has been read.
func (c *MockClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
