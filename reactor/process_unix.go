//go:build unix

// File: reactor/process_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// raiseFDLimit lifts the soft descriptor limit to the hard limit and
// returns the resulting soft limit.
func raiseFDLimit() int {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 1024
	}
	if lim.Cur < lim.Max {
		want := lim
		want.Cur = lim.Max
		if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &want); err == nil {
			lim = want
		} else {
			DefaultLogger().Debug().Err(err).Log("fd limit raise refused")
		}
	}
	if lim.Cur > 1<<24 {
		return 1 << 24
	}
	return int(lim.Cur)
}

// ignoreSignals makes broken pipes surface as EPIPE. The runtime already
// consumes SIGURG for preemption without terminating the process.
func ignoreSignals() {
	signal.Ignore(syscall.SIGPIPE)
}
