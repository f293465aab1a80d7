//go:build linux

// File: internal/clock/clock_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package clock

import "golang.org/x/sys/unix"

const coarseClockID = unix.CLOCK_MONOTONIC_COARSE

func platformSource() (func() (int64, bool), Source) {
	var res unix.Timespec
	if unix.ClockGetres(coarseClockID, &res) == nil && res.Nano() <= int64(maxCoarseResolution) {
		return clockReader(coarseClockID), SourceCoarse
	}
	if unix.ClockGetres(unix.CLOCK_MONOTONIC, &res) == nil {
		return clockReader(unix.CLOCK_MONOTONIC), SourceMonotonic
	}
	return nil, ""
}

func clockReader(id int32) func() (int64, bool) {
	return func() (int64, bool) {
		var ts unix.Timespec
		if err := unix.ClockGettime(id, &ts); err != nil {
			return 0, false
		}
		return ts.Nano(), true
	}
}
