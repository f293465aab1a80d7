// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for system-level monitoring.
// Exposes named atomic counters plus free-form gauges.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a process-wide atomic counter.
type Counter struct {
	v atomic.Int64
}

// Add adds delta and returns the new value.
func (c *Counter) Add(delta int64) int64 { return c.v.Add(delta) }

// Load returns the current value.
func (c *Counter) Load() int64 { return c.v.Load() }

// MetricsRegistry holds counters and gauges.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	metrics  map[string]any
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		metrics:  make(map[string]any),
	}
}

var defaultMetrics = NewMetricsRegistry()

// Metrics returns the process-wide registry.
func Metrics() *MetricsRegistry { return defaultMetrics }

// Counter returns the counter registered under name, creating it on first
// use. Callers normally keep the result in a package variable.
func (mr *MetricsRegistry) Counter(name string) *Counter {
	mr.mu.RLock()
	c, ok := mr.counters[name]
	mr.mu.RUnlock()
	if ok {
		return c
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if c, ok = mr.counters[name]; !ok {
		c = new(Counter)
		mr.counters[name] = c
	}
	return c
}

// Set sets or updates a gauge.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns every gauge and the current counter values.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics)+len(mr.counters))
	for k, v := range mr.metrics {
		out[k] = v
	}
	for k, c := range mr.counters {
		out[k] = c.Load()
	}
	return out
}

// Updated returns the time of the last gauge update.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
