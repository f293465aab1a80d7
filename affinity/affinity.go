// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_windows.go, etc.) guarded by build tags.

// Package affinity pins OS threads to logical CPUs. The worker pool uses it
// from its thread start hook; callers must hold runtime.LockOSThread for the
// pin to stay with the goroutine.
package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-iv/api"
)

// SetAffinity pins the current OS thread to a given logical CPU on supported platforms.
// On unsupported platforms it returns an error wrapping api.ErrNotSupported.
func SetAffinity(cpuID int) error {
	if cpuID < 0 || cpuID >= runtime.NumCPU() {
		return fmt.Errorf("affinity: cpu %d out of range [0,%d): %w",
			cpuID, runtime.NumCPU(), api.ErrInvalidArgument)
	}
	return setAffinityPlatform(cpuID)
}

// CPUForWorker spreads worker indexes round-robin over the logical CPUs.
func CPUForWorker(worker int) int {
	n := runtime.NumCPU()
	return ((worker % n) + n) % n
}
