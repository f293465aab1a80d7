// File: reactor/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer registration on top of the radix-indexed heap.

package reactor

import (
	"time"

	"github.com/momentics/hioload-iv/internal/timerheap"
)

// Timer fires Handler once at or after Expires. A handler may re-register
// its own timer, or any other, with a new expiry.
type Timer struct {
	Expires Time
	Handler func()

	node timerheap.Node
}

// HeapNode exposes the heap bookkeeping to the timer heap.
func (t *Timer) HeapNode() *timerheap.Node { return &t.node }

// Registered reports whether the timer is scheduled.
func (t *Timer) Registered() bool { return t.node.Scheduled() }

// RegisterTimer schedules t at t.Expires. Scheduling an already scheduled
// timer is fatal.
func (r *Reactor) RegisterTimer(t *Timer) {
	t.node.Expires = int64(t.Expires)
	if err := r.timers.Push(t); err != nil {
		fatal(r, "register timer: %v", err)
	}
	r.numObjs++
}

// UnregisterTimer cancels t. Cancelling an unscheduled timer is fatal.
func (r *Reactor) UnregisterTimer(t *Timer) {
	if err := r.timers.Remove(t); err != nil {
		fatal(r, "unregister timer: %v", err)
	}
	r.numObjs--
}

// TimerAfter sets t to expire d after the cached loop time and schedules it.
func (r *Reactor) TimerAfter(t *Timer, d time.Duration) {
	t.Expires = r.Now().Add(d)
	r.RegisterTimer(t)
}

// runTimers fires every timer due at the cached time. Timers registered by
// a handler with an expiry already due fire in the same pass.
func (r *Reactor) runTimers() {
	if r.timers.Len() == 0 {
		return
	}
	now := int64(r.Now())
	for {
		t, ok := r.timers.PopDue(now)
		if !ok {
			return
		}
		r.numObjs--
		r.stats.TimersFired++
		metricTimers.Add(1)
		t.Handler()
	}
}
