// Package clock abstracts the time operations used by lock renewal and polling
// so tests can drive them deterministically.
package clock

import "time"

// Clock defines an interface for time-related operations, allowing for testing.
// It abstracts away the standard `time` package.
type Clock interface {
	// Now returns the current local time.
	Now() time.Time

	// Since returns the time elapsed since t (equivalent to Now().Sub(t)).
	Since(t time.Time) time.Duration

	// NewTimer creates a new Timer that will send the current time on its channel
	// after at least duration d. A zero or negative duration fires immediately.
	NewTimer(d time.Duration) Timer
}

// Timer is an interface wrapper around time.Timer for mocking.
type Timer interface {
	// Chan returns the channel on which the time will be delivered.
	Chan() <-chan time.Time

	// Stop prevents the Timer from firing.
	// It returns true if the call stops the timer, false if the timer has already
	// expired or been stopped.
	Stop() bool

	// Reset changes the timer to expire after duration d.
	// It returns true if the timer had been active, false if the timer had
	// expired or been stopped.
	Reset(d time.Duration) bool
}

// standardClock implements the Clock interface using the standard Go time package.
type standardClock struct{}

// New returns a Clock implementation based on Go's standard time package.
func New() Clock {
	return &standardClock{}
}

func (sc *standardClock) Now() time.Time {
	return time.Now()
}

func (sc *standardClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (sc *standardClock) NewTimer(d time.Duration) Timer {
	return &standardTimer{timer: time.NewTimer(d)}
}

// standardTimer wraps time.Timer to satisfy the Timer interface.
type standardTimer struct {
	timer *time.Timer
}

func (st *standardTimer) Chan() <-chan time.Time {
	return st.timer.C
}

func (st *standardTimer) Stop() bool {
	return st.timer.Stop()
}

func (st *standardTimer) Reset(d time.Duration) bool {
	return st.timer.Reset(d)
}
