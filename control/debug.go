// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Named probes reporting live reactor and platform state.

package control

import (
	"sync"

	"github.com/momentics/hioload-iv/api"
)

// DebugProbes maps probe names to functions evaluated on demand. The zero
// value is ready to use.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

var _ api.Debug = (*DebugProbes)(nil)

var (
	probesOnce    sync.Once
	defaultProbes DebugProbes
)

// Probes returns the process-wide registry, with platform probes installed.
func Probes() *DebugProbes {
	probesOnce.Do(func() { RegisterPlatformProbes(&defaultProbes) })
	return &defaultProbes
}

// RegisterProbe adds or replaces a probe.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if dp.probes == nil {
		dp.probes = make(map[string]func() any)
	}
	dp.probes[name] = fn
}

// DumpState evaluates every probe. Probes run without the registry lock
// held, so one may take other locks or register further probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	fns := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		fns[k] = fn
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(fns))
	for k, fn := range fns {
		out[k] = fn()
	}
	return out
}
