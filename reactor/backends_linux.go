//go:build linux

// File: reactor/backends_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

func backendCandidates() []backendFactory {
	return []backendFactory{
		{name: "epoll", new: newEpollBackend},
		{name: "uring", new: newUringBackend},
		{name: "poll", new: newPollBackend},
	}
}
