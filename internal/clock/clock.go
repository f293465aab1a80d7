// File: internal/clock/clock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Monotonic time source for the reactor loop.

// Package clock picks the cheapest monotonic clock with acceptable
// resolution once per process and reads it in nanoseconds.
//
// Fallback order: a coarse monotonic clock when its resolution is 1ms or
// better, then the full monotonic clock, then the Go runtime clock.
package clock

import (
	"sync"
	"time"
)

// Source names the selected clock.
type Source string

const (
	SourceCoarse    Source = "monotonic-coarse"
	SourceMonotonic Source = "monotonic"
	SourceRuntime   Source = "runtime"
)

// maxCoarseResolution is the worst resolution accepted from a coarse clock.
const maxCoarseResolution = time.Millisecond

var (
	once    sync.Once
	reader  func() (int64, bool)
	source  Source
	started = time.Now()
)

func selectSource() {
	reader, source = platformSource()
	if reader == nil {
		reader, source = runtimeNow, SourceRuntime
	}
}

func runtimeNow() (int64, bool) {
	return int64(time.Since(started)), true
}

// Now returns the current monotonic time in nanoseconds. Only differences
// between values are meaningful.
func Now() int64 {
	once.Do(selectSource)
	if ns, ok := reader(); ok {
		return ns
	}
	ns, _ := runtimeNow()
	return ns
}

// Selected reports which clock Now reads.
func Selected() Source {
	once.Do(selectSource)
	return source
}
