// File: pool/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"time"

	"github.com/joeycumines/logiface"
)

// Option configures a Pool.
type Option func(*options)

type options struct {
	name        string
	maxThreads  int
	idleTimeout time.Duration
	startHook   func(worker int)
	stopHook    func(worker int)
	pin         bool
	logger      *logiface.Logger[logiface.Event]
	loggerSet   bool
}

// WithName labels the pool and its worker reactors in log records.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMaxThreads caps the number of worker threads.
func WithMaxThreads(n int) Option {
	return func(o *options) { o.maxThreads = n }
}

// WithIdleTimeout sets how long a worker waits for work before exiting.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) { o.idleTimeout = d }
}

// WithStartHook runs fn on each worker thread before it accepts work.
func WithStartHook(fn func(worker int)) Option {
	return func(o *options) { o.startHook = fn }
}

// WithStopHook runs fn on each worker thread as it exits.
func WithStopHook(fn func(worker int)) Option {
	return func(o *options) { o.stopHook = fn }
}

// WithCPUPinning pins worker threads round-robin to logical CPUs.
func WithCPUPinning(on bool) Option {
	return func(o *options) { o.pin = on }
}

// WithLogger sets the pool's logger. A nil logger disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(o *options) {
		o.logger = l
		o.loggerSet = true
	}
}
