package clock

import "time"

// Clock is the single source of "now" for the core. Timer math and add-on
// expiry are derived from stored timestamps, so every read of the current
// time must go through this interface to stay testable.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed is a controllable clock for tests. It is not safe for concurrent
// use; tests drive it from a single goroutine.
type Fixed struct {
	T time.Time
}

// NewFixed creates a Fixed clock starting at t.
func NewFixed(t time.Time) *Fixed { return &Fixed{T: t} }

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
