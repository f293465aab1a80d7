//go:build windows

// control/config_windows.go
// Author: momentics <momentics@gmail.com>

package control

// identityMatches is always true; windows has no set-id executables.
func identityMatches() bool { return true }
