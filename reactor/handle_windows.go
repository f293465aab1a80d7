//go:build windows

// File: reactor/handle_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Waitable kernel handle registration.

package reactor

import (
	"github.com/momentics/hioload-iv/internal/handlegroup"
	"golang.org/x/sys/windows"
)

// Handle watches one waitable kernel object (event, process, thread,
// waitable timer, ...). Handler runs on the owning reactor each time the
// object is signalled. An auto-reset object is reset by the wait itself;
// for a manual-reset object the handler must reset it, or it fires again
// on the next iteration.
type Handle struct {
	Handle  windows.Handle
	Handler func()

	handler    func()
	owner      *Reactor
	registered bool
	gen        uint64
	member     handlegroup.Member
}

// Registered reports whether h is registered with a reactor.
func (h *Handle) Registered() bool { return h.registered }

func (h *Handle) live(r *Reactor, gen uint64) bool {
	return h.registered && h.owner == r && h.gen == gen
}

func (r *Reactor) handleBackend() *handleBackend {
	b, ok := r.be.(*handleBackend)
	if !ok {
		fatal(r, "handle registration needs the handle backend, have %s", r.be.name())
	}
	return b
}

// RegisterHandle starts watching h. A failure to start a group thread is
// returned; registering a registered handle is fatal.
func (r *Reactor) RegisterHandle(h *Handle) error {
	if h.registered {
		fatal(r, "handle %#x already registered", h.Handle)
	}
	if h.Handler == nil {
		fatal(r, "handle %#x registered without handler", h.Handle)
	}
	b := r.handleBackend()

	h.gen++
	gen := h.gen
	h.owner = r
	h.handler = h.Handler
	h.member = handlegroup.Member{
		Handle:   uintptr(h.Handle),
		OnSignal: func(*handlegroup.Member) { b.post(h, gen) },
	}
	h.registered = true

	g, err := handleGroups().Add(&h.member, b.home)
	if err != nil {
		h.registered = false
		return err
	}
	b.home = g
	b.handles[h] = struct{}{}
	r.numObjs++
	r.stats.Handles++
	return nil
}

// UnregisterHandle stops watching h. When it returns, no group thread
// waits on h.Handle any longer, so the handle may be closed.
func (r *Reactor) UnregisterHandle(h *Handle) {
	if !h.registered || h.owner != r {
		fatal(r, "handle %#x not registered with this reactor", h.Handle)
	}
	b := r.handleBackend()
	h.registered = false
	h.handler = nil
	handleGroups().Remove(&h.member)
	delete(b.handles, h)
	r.numObjs--
	r.stats.Handles--
}
