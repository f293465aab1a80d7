//go:build unix

// File: reactor/backend_poll_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// poll(2) fallback backend: a dense pollfd array rebuilt incrementally and
// scanned linearly after every wait.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

type pollBackend struct {
	r       *Reactor
	pollfds []unix.PollFd
	fds     []*FD
}

func newPollBackend() backend { return &pollBackend{} }

func (b *pollBackend) name() string { return "poll" }

func (b *pollBackend) init(r *Reactor, maxFDs int) error {
	b.r = r
	return nil
}

func pollMask(b Band) int16 {
	var m int16
	if b&BandIn != 0 {
		m |= unix.POLLIN | unix.POLLPRI
	}
	if b&BandOut != 0 {
		m |= unix.POLLOUT
	}
	return m
}

func pollBands(revents int) Band {
	var b Band
	if revents&(unix.POLLIN|unix.POLLPRI|unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		b |= BandIn
	}
	if revents&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		b |= BandOut
	}
	if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		b |= BandErr
	}
	return b
}

func (b *pollBackend) register(fd *FD) {}

func (b *pollBackend) unregister(fd *FD) {
	b.remove(fd)
}

// notify applies the change in place; the array is read only by poll.
func (b *pollBackend) notify(fd *FD) {
	switch {
	case fd.wanted == 0:
		b.remove(fd)
	case fd.slot < 0:
		fd.slot = len(b.fds)
		b.fds = append(b.fds, fd)
		b.pollfds = append(b.pollfds, unix.PollFd{Fd: int32(fd.Fd), Events: pollMask(fd.wanted)})
	default:
		b.pollfds[fd.slot].Events = pollMask(fd.wanted)
	}
	fd.kernel = fd.wanted
}

func (b *pollBackend) notifyFDSync(fd *FD) error {
	if err := validateDescriptor(fd.Fd); err != nil {
		return err
	}
	if fd.wanted != 0 {
		b.notify(fd)
	}
	return nil
}

func (b *pollBackend) remove(fd *FD) {
	i := fd.slot
	if i < 0 {
		return
	}
	last := len(b.fds) - 1
	if i != last {
		b.fds[i] = b.fds[last]
		b.pollfds[i] = b.pollfds[last]
		b.fds[i].slot = i
	}
	b.fds[last] = nil
	b.fds = b.fds[:last]
	b.pollfds = b.pollfds[:last]
	fd.slot = -1
	fd.kernel = 0
}

func (b *pollBackend) poll(timeout time.Duration) error {
	n, err := unix.Poll(b.pollfds, msTimeout(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return fmt.Errorf("poll: %w", err)
	}
	for i := 0; n > 0 && i < len(b.pollfds); i++ {
		rev := b.pollfds[i].Revents
		if rev == 0 {
			continue
		}
		n--
		b.pollfds[i].Revents = 0
		b.r.markReady(b.fds[i], pollBands(int(rev)))
	}
	return nil
}

func (b *pollBackend) close() {
	b.pollfds, b.fds = nil, nil
}
