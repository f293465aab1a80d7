//go:build windows

// File: reactor/process_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

// raiseFDLimit has no equivalent; the handle backend is limited by group
// threads, not by a descriptor table.
func raiseFDLimit() int { return 1 << 16 }

func ignoreSignals() {}
