package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock swaps the time source used across the pipeline. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the pipeline clock.
func Now() time.Time {
	return clock.Now()
}

// Since returns the time elapsed since t according to the pipeline clock.
func Since(t time.Time) time.Duration {
	return clock.Since(t)
}
