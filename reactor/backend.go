// File: reactor/backend.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poll backend contract and per-reactor instantiation.

package reactor

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-iv/api"
)

// backend is one OS polling facility bound to one reactor.
//
// register and unregister attach and detach bookkeeping; unregister must
// tolerate a descriptor holding unresolved ready state. notify reports a
// change of fd.wanted and may defer the kernel update until the next poll.
// notifyFDSync pushes the registration immediately and returns the
// kernel's verdict. poll blocks for at most timeout (negative means no
// limit) and reports readiness through Reactor.markReady. Errors from
// poll are fatal to the reactor.
type backend interface {
	name() string
	init(r *Reactor, maxFDs int) error
	poll(timeout time.Duration) error
	register(fd *FD)
	unregister(fd *FD)
	notify(fd *FD)
	notifyFDSync(fd *FD) error
	close()
}

// backendFactory describes one candidate in the preference list.
type backendFactory struct {
	name string
	new  func() backend
}

// newBackend instantiates the process-wide backend for r, selecting it on
// first use. A non-empty forced name bypasses selection.
func newBackend(r *Reactor, forced string) (backend, error) {
	ps := processInit()
	if forced != "" {
		f, ok := lookupBackend(forced)
		if !ok {
			return nil, fmt.Errorf("reactor: backend %q: %w", forced, api.ErrNotSupported)
		}
		be := f.new()
		if err := be.init(r, ps.maxFDs); err != nil {
			return nil, fmt.Errorf("reactor: backend %q: %w", forced, err)
		}
		return be, nil
	}
	return ps.instantiate(r)
}

func lookupBackend(name string) (backendFactory, bool) {
	for _, f := range backendCandidates() {
		if f.name == name {
			return f, true
		}
	}
	return backendFactory{}, false
}

// BackendNames lists the backends compiled for this platform in
// preference order.
func BackendNames() []string {
	var out []string
	for _, f := range backendCandidates() {
		out = append(out, f.name)
	}
	return out
}

// msTimeout converts a poll timeout to milliseconds, rounding up so a
// sub-millisecond deadline does not turn into a busy loop.
func msTimeout(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<30 {
		ms = 1 << 30
	}
	return int(ms)
}

// fdTable maps descriptor numbers to registrations for backends whose
// kernel interface only returns the number.
type fdTable struct {
	fds []*FD
}

func (t *fdTable) set(fd *FD) {
	for fd.Fd >= len(t.fds) {
		t.fds = append(t.fds, make([]*FD, len(t.fds)+64)...)
	}
	t.fds[fd.Fd] = fd
}

func (t *fdTable) clear(fd *FD) {
	if fd.Fd < len(t.fds) && t.fds[fd.Fd] == fd {
		t.fds[fd.Fd] = nil
	}
}

func (t *fdTable) get(n int) *FD {
	if n < 0 || n >= len(t.fds) {
		return nil
	}
	return t.fds[n]
}

// pendingList is the batch of registrations whose wanted bands changed
// since the last kernel upload.
type pendingList struct {
	fds []*FD
}

func (p *pendingList) add(fd *FD) {
	if fd.pendingIdx >= 0 {
		return
	}
	fd.pendingIdx = len(p.fds)
	p.fds = append(p.fds, fd)
}

func (p *pendingList) remove(fd *FD) {
	if fd.pendingIdx < 0 {
		return
	}
	p.fds[fd.pendingIdx] = nil
	fd.pendingIdx = -1
}

// flush hands every pending registration to fn once and empties the list.
func (p *pendingList) flush(fn func(fd *FD) error) error {
	var err error
	for i, fd := range p.fds {
		if fd == nil {
			continue
		}
		p.fds[i] = nil
		fd.pendingIdx = -1
		if err == nil {
			err = fn(fd)
		}
	}
	p.fds = p.fds[:0]
	return err
}
