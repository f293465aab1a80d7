//go:build windows

// File: reactor/backends_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

func backendCandidates() []backendFactory {
	return []backendFactory{
		{name: "handle", new: newHandleBackend},
	}
}
