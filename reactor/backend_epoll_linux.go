//go:build linux

// File: reactor/backend_epoll_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Level-triggered epoll(7) backend. Band changes are queued and uploaded
// with one epoll_ctl per descriptor just before epoll_wait.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const epollMaxEvents = 256

type epollBackend struct {
	r       *Reactor
	epfd    int
	table   fdTable
	pending pendingList
	events  []unix.EpollEvent
}

func newEpollBackend() backend { return &epollBackend{epfd: -1} }

func (b *epollBackend) name() string { return "epoll" }

func (b *epollBackend) init(r *Reactor, maxFDs int) error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	b.r = r
	b.epfd = fd
	b.events = make([]unix.EpollEvent, min(maxFDs, epollMaxEvents))
	return nil
}

func epollMask(b Band) uint32 {
	var m uint32
	if b&BandIn != 0 {
		m |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if b&BandOut != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func epollBands(ev uint32) Band {
	var b Band
	if ev&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		b |= BandIn
	}
	if ev&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		b |= BandOut
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		b |= BandErr
	}
	return b
}

func (b *epollBackend) register(fd *FD) {
	b.table.set(fd)
}

func (b *epollBackend) unregister(fd *FD) {
	b.pending.remove(fd)
	b.table.clear(fd)
	if fd.kernel == 0 {
		return
	}
	err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd.Fd, nil)
	if err != nil && !errors.Is(err, unix.EBADF) && !errors.Is(err, unix.ENOENT) {
		fatal(b.r, "epoll_ctl del fd %d: %v", fd.Fd, err)
	}
	fd.kernel = 0
}

func (b *epollBackend) notify(fd *FD) {
	b.pending.add(fd)
}

func (b *epollBackend) notifyFDSync(fd *FD) error {
	b.pending.remove(fd)
	return b.upload(fd)
}

// upload pushes fd.wanted to the kernel. Any wanted band, including err
// alone, needs a kernel registration since EPOLLERR is implicit.
func (b *epollBackend) upload(fd *FD) error {
	if fd.wanted == fd.kernel {
		return nil
	}
	var op int
	switch {
	case fd.kernel == 0:
		op = unix.EPOLL_CTL_ADD
	case fd.wanted == 0:
		op = unix.EPOLL_CTL_DEL
	default:
		op = unix.EPOLL_CTL_MOD
	}
	ev := unix.EpollEvent{Events: epollMask(fd.wanted), Fd: int32(fd.Fd)}
	if err := unix.EpollCtl(b.epfd, op, fd.Fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl fd %d: %w", fd.Fd, err)
	}
	fd.kernel = fd.wanted
	return nil
}

func (b *epollBackend) poll(timeout time.Duration) error {
	if err := b.pending.flush(b.upload); err != nil {
		return err
	}
	n, err := unix.EpollWait(b.epfd, b.events, msTimeout(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return fmt.Errorf("epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := &b.events[i]
		fd := b.table.get(int(ev.Fd))
		if fd == nil {
			continue
		}
		b.r.markReady(fd, epollBands(ev.Events))
	}
	return nil
}

func (b *epollBackend) close() {
	if b.epfd >= 0 {
		unix.Close(b.epfd)
		b.epfd = -1
	}
}
