//go:build linux

// File: reactor/backend_uring_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// io_uring backend. Readiness is requested with one-shot IORING_OP_POLL_ADD
// and re-armed after every completion; band changes cancel the outstanding
// poll with IORING_OP_POLL_REMOVE. User data carries the descriptor number
// and a backend-wide arm sequence so completions of cancelled polls are recognised.

package reactor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/momentics/hioload-iv/internal/uring"
	"golang.org/x/sys/unix"
)

const (
	uringEntries   = 1024
	uringRemoveTag = math.MaxUint64
)

type uringBackend struct {
	r       *Reactor
	ring    *uring.Ring
	table   fdTable
	pending pendingList
	seq     uint32
}

func newUringBackend() backend { return &uringBackend{} }

func (b *uringBackend) name() string { return "uring" }

func (b *uringBackend) init(r *Reactor, maxFDs int) error {
	ring, err := uring.New(uint32(min(maxFDs, uringEntries)))
	if err != nil {
		return err
	}
	b.r = r
	b.ring = ring
	r.log.Debug().
		Uint64("features", uint64(ring.Features())).
		Log("io_uring ready")
	return nil
}

func uringUserData(fd *FD) uint64 {
	return uint64(uint32(fd.Fd)) | uint64(fd.seq)<<32
}

func uringMask(b Band) uint32 {
	var m uint32
	if b&BandIn != 0 {
		m |= unix.POLLIN | unix.POLLPRI
	}
	if b&BandOut != 0 {
		m |= unix.POLLOUT
	}
	return m
}

// sqe returns a free submission slot, submitting queued entries first if
// the queue is full.
func (b *uringBackend) sqe() (*uring.SQE, error) {
	if s := b.ring.GetSQE(); s != nil {
		return s, nil
	}
	if err := b.ring.Submit(); err != nil {
		return nil, fmt.Errorf("io_uring_enter: %w", err)
	}
	if s := b.ring.GetSQE(); s != nil {
		return s, nil
	}
	return nil, errors.New("io_uring submission queue stuck")
}

func (b *uringBackend) register(fd *FD) {
	b.table.set(fd)
}

func (b *uringBackend) unregister(fd *FD) {
	b.pending.remove(fd)
	b.table.clear(fd)
	if fd.kernel == 0 {
		return
	}
	if err := b.cancel(fd); err != nil {
		fatal(b.r, "uring: unregister fd %d: %v", fd.Fd, err)
	}
	// the poll holds a file reference until the removal is processed
	if err := b.ring.Submit(); err != nil {
		fatal(b.r, "uring: submit: %v", err)
	}
}

func (b *uringBackend) notify(fd *FD) {
	b.pending.add(fd)
}

func (b *uringBackend) notifyFDSync(fd *FD) error {
	if err := validateDescriptor(fd.Fd); err != nil {
		return err
	}
	b.pending.remove(fd)
	if err := b.upload(fd); err != nil {
		return err
	}
	return b.ring.Submit()
}

func (b *uringBackend) cancel(fd *FD) error {
	s, err := b.sqe()
	if err != nil {
		return err
	}
	s.PreparePollRemove(uringUserData(fd), uringRemoveTag)
	fd.kernel = 0
	b.seq++
	fd.seq = b.seq
	return nil
}

func (b *uringBackend) upload(fd *FD) error {
	if fd.kernel == fd.wanted {
		return nil
	}
	if fd.kernel != 0 {
		if err := b.cancel(fd); err != nil {
			return err
		}
	}
	if fd.wanted == 0 {
		return nil
	}
	s, err := b.sqe()
	if err != nil {
		return err
	}
	b.seq++
	fd.seq = b.seq
	s.PreparePollAdd(fd.Fd, uringMask(fd.wanted), uringUserData(fd))
	fd.kernel = fd.wanted
	return nil
}

func (b *uringBackend) poll(timeout time.Duration) error {
	if err := b.pending.flush(b.upload); err != nil {
		return err
	}
	if err := b.ring.SubmitAndWait(timeout); err != nil {
		switch {
		case errors.Is(err, unix.EINTR):
			return nil
		case errors.Is(err, unix.EBUSY), errors.Is(err, unix.EAGAIN):
			// completion queue backlog, reap below
		default:
			return fmt.Errorf("io_uring_enter: %w", err)
		}
	}
	return b.reap()
}

func (b *uringBackend) reap() error {
	for {
		cqe, ok := b.ring.PeekCQE()
		if !ok {
			return nil
		}
		ud, res := cqe.UserData, cqe.Res
		b.ring.Advance(1)

		if ud == uringRemoveTag {
			continue
		}
		fd := b.table.get(int(uint32(ud)))
		if fd == nil || uint32(ud>>32) != fd.seq || fd.kernel == 0 {
			limited("uring.stale", b.r.log.Debug()).
				Uint64("user_data", ud).
				Int("res", int(res)).
				Log("stale io_uring completion")
			continue
		}
		fd.kernel = 0
		if res < 0 {
			if unix.Errno(-res) == unix.ECANCELED {
				continue
			}
			return fmt.Errorf("poll fd %d: %w", fd.Fd, unix.Errno(-res))
		}
		b.r.markReady(fd, pollBands(int(res)))
		if fd.wanted != 0 {
			b.pending.add(fd)
		}
	}
}

func (b *uringBackend) close() {
	if b.ring != nil {
		b.ring.Close()
		b.ring = nil
	}
}
