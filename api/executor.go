// Package api
// Author: momentics
//
// Executor contract for offloading blocking work from a reactor thread.

package api

// Executor runs blocking work off the calling reactor thread.
type Executor interface {
	// Submit schedules work on a helper thread; complete, if non-nil, later
	// runs on the submitting reactor's thread.
	Submit(work, complete func()) error

	// NumWorkers returns the number of started helper threads.
	NumWorkers() int
}
