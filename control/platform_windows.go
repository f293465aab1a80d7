//go:build windows
// +build windows

// control/platform_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific metrics/debug introspection points.

package control

import (
	"runtime"

	"github.com/momentics/hioload-iv/internal/clock"
	"golang.org/x/sys/windows"
)

// RegisterPlatformProbes sets Windows-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.clock", func() any {
		return string(clock.Selected())
	})
	dp.RegisterProbe("platform.kernel", func() any {
		v := windows.RtlGetVersion()
		return [3]uint32{v.MajorVersion, v.MinorVersion, v.BuildNumber}
	})
}
