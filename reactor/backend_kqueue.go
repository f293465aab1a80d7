//go:build darwin || freebsd

// File: reactor/backend_kqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// kqueue(2) backend. Filter changes are batched into the changelist of the
// next kevent wait. Cross-thread wakes use an EVFILT_USER event on the
// same queue.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	kqueueMaxEvents = 256
	kqueueUserIdent = 0
)

// kqueueDeleteMark is the udata of every EV_DELETE change. Error events
// overwrite flags but return udata as submitted, which is how a failed
// delete is told apart from a failed add.
var kqueueDeleteMark byte

type kqueueBackend struct {
	r       *Reactor
	kq      int
	table   fdTable
	pending pendingList
	changes []unix.Kevent_t
	events  []unix.Kevent_t
	userOn  bool
}

func newKqueueBackend() backend { return &kqueueBackend{kq: -1} }

func (b *kqueueBackend) name() string { return "kqueue" }

func (b *kqueueBackend) init(r *Reactor, maxFDs int) error {
	kq, err := unix.Kqueue()
	if err != nil {
		return fmt.Errorf("kqueue: %w", err)
	}
	unix.CloseOnExec(kq)
	b.r = r
	b.kq = kq
	b.events = make([]unix.Kevent_t, min(maxFDs, kqueueMaxEvents))
	return nil
}

func (b *kqueueBackend) register(fd *FD) {
	b.table.set(fd)
}

func (b *kqueueBackend) unregister(fd *FD) {
	b.pending.remove(fd)
	b.table.clear(fd)
	if fd.kernel == 0 {
		return
	}
	// applied lazily; a closed descriptor answers ENOENT, which is ignored
	saved := fd.wanted
	fd.wanted = 0
	b.queueChanges(fd)
	fd.wanted = saved
}

func (b *kqueueBackend) notify(fd *FD) {
	b.pending.add(fd)
}

func (b *kqueueBackend) notifyFDSync(fd *FD) error {
	if err := validateDescriptor(fd.Fd); err != nil {
		return err
	}
	b.pending.remove(fd)
	start := len(b.changes)
	b.queueChanges(fd)
	if len(b.changes) == start {
		return nil
	}
	batch := append([]unix.Kevent_t(nil), b.changes[start:]...)
	b.changes = b.changes[:start]
	for i := range batch {
		batch[i].Flags |= unix.EV_RECEIPT
	}
	out := make([]unix.Kevent_t, len(batch))
	n, err := unix.Kevent(b.kq, batch, out, &unix.Timespec{})
	if err != nil {
		return fmt.Errorf("kevent: %w", err)
	}
	for i := 0; i < n; i++ {
		if out[i].Flags&unix.EV_ERROR != 0 && out[i].Data != 0 {
			return unix.Errno(out[i].Data)
		}
	}
	return nil
}

// queueChanges appends filter changes bringing the kernel to fd.wanted.
// The error band rides on the read filter.
func (b *kqueueBackend) queueChanges(fd *FD) {
	wantRead := fd.wanted&(BandIn|BandErr) != 0
	wantWrite := fd.wanted&BandOut != 0
	hasRead := fd.kernel&(BandIn|BandErr) != 0
	hasWrite := fd.kernel&BandOut != 0

	add := func(filter int, on bool) {
		var k unix.Kevent_t
		flags := unix.EV_DELETE
		if on {
			flags = unix.EV_ADD | unix.EV_ENABLE
		}
		unix.SetKevent(&k, fd.Fd, filter, flags)
		if !on {
			k.Udata = &kqueueDeleteMark
		}
		b.changes = append(b.changes, k)
	}
	if wantRead != hasRead {
		add(unix.EVFILT_READ, wantRead)
	}
	if wantWrite != hasWrite {
		add(unix.EVFILT_WRITE, wantWrite)
	}
	fd.kernel = fd.wanted
}

func (b *kqueueBackend) poll(timeout time.Duration) error {
	b.pending.flush(func(fd *FD) error {
		b.queueChanges(fd)
		return nil
	})

	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}
	n, err := unix.Kevent(b.kq, b.changes, b.events, ts)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			// the changelist was consumed before the wait was interrupted
			b.changes = b.changes[:0]
			return nil
		}
		return fmt.Errorf("kevent: %w", err)
	}
	b.changes = b.changes[:0]

	for i := 0; i < n; i++ {
		ev := &b.events[i]
		if ev.Filter == unix.EVFILT_USER {
			b.r.runEvents()
			continue
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			errno := unix.Errno(ev.Data)
			if errno == 0 {
				continue
			}
			// a descriptor closed before its filter was deleted has no
			// filter left; a failed add leaves it unwatched
			if ev.Udata == &kqueueDeleteMark && (errno == unix.ENOENT || errno == unix.EBADF) {
				continue
			}
			return fmt.Errorf("kevent change on fd %d filter %d: %w", ev.Ident, ev.Filter, errno)
		}
		fd := b.table.get(int(ev.Ident))
		if fd == nil {
			continue
		}
		var bands Band
		switch ev.Filter {
		case unix.EVFILT_READ:
			bands = BandIn
			if ev.Flags&unix.EV_EOF != 0 && ev.Fflags != 0 {
				bands |= BandErr
			}
		case unix.EVFILT_WRITE:
			bands = BandOut
			if ev.Flags&unix.EV_EOF != 0 {
				bands |= BandErr
			}
		}
		b.r.markReady(fd, bands)
	}
	return nil
}

func (b *kqueueBackend) eventRxOn() error {
	var k unix.Kevent_t
	unix.SetKevent(&k, kqueueUserIdent, unix.EVFILT_USER, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(b.kq, []unix.Kevent_t{k}, nil, nil); err != nil {
		return err
	}
	b.userOn = true
	return nil
}

func (b *kqueueBackend) eventRxOff() {
	if !b.userOn {
		return
	}
	var k unix.Kevent_t
	unix.SetKevent(&k, kqueueUserIdent, unix.EVFILT_USER, unix.EV_DELETE)
	unix.Kevent(b.kq, []unix.Kevent_t{k}, nil, nil)
	b.userOn = false
}

// eventSend triggers the user event; kevent is safe across threads.
func (b *kqueueBackend) eventSend() {
	var k unix.Kevent_t
	unix.SetKevent(&k, kqueueUserIdent, unix.EVFILT_USER, 0)
	k.Fflags = unix.NOTE_TRIGGER
	if _, err := unix.Kevent(b.kq, []unix.Kevent_t{k}, nil, nil); err != nil {
		limited("kqueue.user", b.r.log.Err()).Err(err).Log("user event trigger failed")
	}
}

func (b *kqueueBackend) close() {
	if b.kq >= 0 {
		unix.Close(b.kq)
		b.kq = -1
	}
}
