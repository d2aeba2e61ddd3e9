// Package api
// Author: momentics
//
// Scheduler contract for timed callbacks. Heartbeat tasks run through it so
// tests can drive time by hand.

package api

import "time"

// Cancelable is a handle to a scheduled callback.
type Cancelable interface {
	// Stop prevents the callback from running. Returns false if it already
	// ran or was stopped.
	Stop() bool
}

// Scheduler abstracts one-shot timers and the clock.
type Scheduler interface {
	// AfterFunc runs fn once, after d, on its own goroutine.
	AfterFunc(d time.Duration, fn func()) Cancelable

	// Now returns the current time.
	Now() time.Time
}
