package timeutil

import (
	"sync"
	"time"
)

// Clock is the time source for code that waits between polls.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func NewSystemClock() Clock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// ManualClock is a virtual clock for tests. After advances the clock by d and
// fires immediately, so a poll loop runs at full speed while still observing
// elapsed time.
type ManualClock struct {
	mu      sync.Mutex
	current time.Time
	waits   []time.Duration
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{current: start}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *ManualClock) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.waits = append(m.waits, d)
	now := m.current
	m.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward without recording a wait.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// Waits returns the durations passed to After, in call order.
func (m *ManualClock) Waits() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.waits))
	copy(out, m.waits)
	return out
}
