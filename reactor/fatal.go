// File: reactor/fatal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single entry point for unrecoverable conditions.

package reactor

import (
	"fmt"
	"sync/atomic"
)

// FatalError is the panic value raised by Fatal. Recovering it is only
// meaningful in tests; the reactor state that raised it must be discarded.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string { return "reactor: fatal: " + e.Message }

var fatalHandler atomic.Pointer[func(msg string)]

// SetFatalHandler installs a hook that observes every fatal message before
// the panic is raised. Passing nil removes it.
func SetFatalHandler(fn func(msg string)) {
	if fn == nil {
		fatalHandler.Store(nil)
		return
	}
	fatalHandler.Store(&fn)
}

// Fatal reports a broken invariant: it logs at emergency level, runs the
// fatal handler, and panics with *FatalError. It never returns.
func Fatal(format string, args ...any) {
	fatal(nil, format, args...)
}

func fatal(r *Reactor, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log := DefaultLogger()
	if r != nil {
		log = r.log
	}
	log.Emerg().Str("component", "reactor").Log(msg)
	if fn := fatalHandler.Load(); fn != nil {
		(*fn)(msg)
	}
	panic(&FatalError{Message: msg})
}
