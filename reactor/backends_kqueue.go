//go:build darwin || freebsd

// File: reactor/backends_kqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

func backendCandidates() []backendFactory {
	return []backendFactory{
		{name: "kqueue", new: newKqueueBackend},
		{name: "poll", new: newPollBackend},
	}
}
