// File: reactor/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Structured logging for the reactor core: a process-wide default logger
// plus category rate limiting for diagnostics that can repeat every loop.

package reactor

import (
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var defaultLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
	set    bool
}

// NewLogger builds the stock JSON-lines logger at the given level. Output
// goes to stderr.
func NewLogger(level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithLevel(level),
	).Logger()
}

// SetDefaultLogger replaces the logger used by reactors created without
// WithLogger. A nil logger disables logging.
func SetDefaultLogger(l *logiface.Logger[logiface.Event]) {
	defaultLogger.Lock()
	defaultLogger.logger = l
	defaultLogger.set = true
	defaultLogger.Unlock()
}

// DefaultLogger returns the process-wide logger. Until SetDefaultLogger is
// called it is a stderr logger at the configured level.
func DefaultLogger() *logiface.Logger[logiface.Event] {
	defaultLogger.RLock()
	l, set := defaultLogger.logger, defaultLogger.set
	defaultLogger.RUnlock()
	if set {
		return l
	}
	defaultLogger.Lock()
	defer defaultLogger.Unlock()
	if !defaultLogger.set {
		defaultLogger.logger = NewLogger(processConfig().LogLevel)
		defaultLogger.set = true
	}
	return defaultLogger.logger
}

// diagLimiter throttles per-category diagnostics such as stale completions.
var diagLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
})

// limited returns b when the category is within its rate, nil otherwise.
// A nil builder is a no-op.
func limited(category string, b *logiface.Builder[logiface.Event]) *logiface.Builder[logiface.Event] {
	if b == nil || !b.Enabled() {
		return nil
	}
	if _, ok := diagLimiter.Allow(category); !ok {
		b.Release()
		return nil
	}
	return b
}
