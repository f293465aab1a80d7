// File: reactor/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for reactor construction.

package reactor

import "github.com/joeycumines/logiface"

// Option configures a Reactor.
type Option func(*options)

type options struct {
	logger    *logiface.Logger[logiface.Event]
	loggerSet bool
	name      string
	backend   string
}

// WithLogger sets the reactor's logger. A nil logger disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(o *options) {
		o.logger = l
		o.loggerSet = true
	}
}

// WithName labels the reactor in log records.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// withBackend bypasses process-wide selection. Used by tests to exercise
// every backend available on the host.
func withBackend(name string) Option {
	return func(o *options) { o.backend = name }
}
