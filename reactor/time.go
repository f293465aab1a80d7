// File: reactor/time.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Monotonic timestamps and the per-iteration cached clock.

package reactor

import (
	"time"

	"github.com/momentics/hioload-iv/internal/clock"
)

// Time is an absolute monotonic timestamp in nanoseconds. Only values
// obtained from Reactor.Now (or derived from them) are comparable.
type Time int64

// Add returns t+d.
func (t Time) Add(d time.Duration) Time { return t + Time(d) }

// Sub returns t-u.
func (t Time) Sub(u Time) time.Duration { return time.Duration(t - u) }

// Before reports whether t is earlier than u.
func (t Time) Before(u Time) bool { return t < u }

// Now returns the cached loop time, reading the clock if the cache was
// invalidated. The cache is dropped after every blocking poll.
func (r *Reactor) Now() Time {
	if !r.nowValid {
		r.now = Time(clock.Now())
		r.nowValid = true
	}
	return r.now
}

// InvalidateNow forces the next Now to read the clock.
func (r *Reactor) InvalidateNow() {
	r.nowValid = false
}
