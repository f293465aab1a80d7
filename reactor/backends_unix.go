//go:build unix && !linux && !darwin && !freebsd

// File: reactor/backends_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

func backendCandidates() []backendFactory {
	return []backendFactory{
		{name: "poll", new: newPollBackend},
	}
}
