// File: reactor/fd.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Descriptor registration and readiness bookkeeping.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-iv/api"
)

// Band is a set of readiness classes.
type Band uint8

const (
	BandIn Band = 1 << iota
	BandOut
	BandErr
)

func (b Band) String() string {
	s := ""
	for _, x := range [...]struct {
		b Band
		n string
	}{{BandIn, "in"}, {BandOut, "out"}, {BandErr, "err"}} {
		if b&x.b != 0 {
			if s != "" {
				s += "|"
			}
			s += x.n
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// FD is the registration record of one OS descriptor. Set Fd and the
// initial handlers, then pass it to RegisterFD. After registration,
// change handlers only through the SetHandler methods.
type FD struct {
	Fd         int
	HandlerIn  func()
	HandlerOut func()
	HandlerErr func()

	handlerIn, handlerOut, handlerErr func()

	owner      *Reactor
	registered bool
	internal   bool
	gen        uint64

	wanted Band // derived from non-nil handlers
	kernel Band // last value pushed to the backend
	ready  Band // accumulated during this poll cycle

	activeIdx int

	// backend-private bookkeeping
	pendingIdx int
	slot       int
	seq        uint32
}

// Registered reports whether fd is currently registered with a reactor.
func (fd *FD) Registered() bool { return fd.registered }

// Wanted returns the bands the registration currently asks for.
func (fd *FD) Wanted() Band { return fd.wanted }

func (fd *FD) live(r *Reactor, gen uint64) bool {
	return fd.registered && fd.owner == r && fd.gen == gen
}

func (fd *FD) computeWanted() Band {
	var b Band
	if fd.handlerIn != nil {
		b |= BandIn
	}
	if fd.handlerOut != nil {
		b |= BandOut
	}
	if fd.handlerErr != nil {
		b |= BandErr
	}
	return b
}

func (r *Reactor) prepareFD(fd *FD) {
	if fd.registered {
		fatal(r, "fd %d already registered", fd.Fd)
	}
	if fd.Fd < 0 {
		fatal(r, "registering negative fd %d", fd.Fd)
	}
	fd.owner = r
	fd.registered = true
	fd.gen++
	fd.handlerIn, fd.handlerOut, fd.handlerErr = fd.HandlerIn, fd.HandlerOut, fd.HandlerErr
	fd.wanted = fd.computeWanted()
	fd.kernel = 0
	fd.ready = 0
	fd.activeIdx = -1
	fd.pendingIdx = -1
	fd.slot = -1
}

func (r *Reactor) commitFD(fd *FD) {
	if !fd.internal {
		r.numObjs++
	}
	r.stats.FDs++
}

// RegisterFD adds fd to the reactor. The descriptor is switched to
// non-blocking close-on-exec mode. Registering an already registered FD,
// or a descriptor the OS rejects, is fatal; see RegisterFDChecked.
func (r *Reactor) RegisterFD(fd *FD) {
	r.prepareFD(fd)
	if err := prepareDescriptor(fd.Fd); err != nil {
		fatal(r, "fd %d: %v", fd.Fd, err)
	}
	r.be.register(fd)
	r.commitFD(fd)
	if fd.wanted != 0 {
		r.be.notify(fd)
	}
}

// RegisterFDChecked is RegisterFD with immediate validation: the backend
// pushes the registration to the kernel synchronously and a rejection is
// returned instead of being fatal. On error fd is left unregistered.
func (r *Reactor) RegisterFDChecked(fd *FD) error {
	r.prepareFD(fd)
	if err := prepareDescriptor(fd.Fd); err != nil {
		fd.registered = false
		return registrationError(fd, err)
	}
	r.be.register(fd)
	if err := r.be.notifyFDSync(fd); err != nil {
		r.be.unregister(fd)
		fd.registered = false
		return registrationError(fd, err)
	}
	r.commitFD(fd)
	return nil
}

func registrationError(fd *FD, err error) error {
	code := api.ErrCodeInvalidArgument
	if isUnsupported(err) {
		code = api.ErrCodeNotSupported
	}
	return api.NewError(code, fmt.Sprintf("register fd %d: %v", fd.Fd, err)).
		WithContext("fd", fd.Fd).
		WithCause(err)
}

// UnregisterFD removes fd. It is legal from within any handler, including
// fd's own; pending bands for fd are discarded.
func (r *Reactor) UnregisterFD(fd *FD) {
	if !fd.registered || fd.owner != r {
		fatal(r, "fd %d not registered with this reactor", fd.Fd)
	}
	if fd.activeIdx >= 0 {
		r.active[fd.activeIdx] = nil
		fd.activeIdx = -1
	}
	fd.ready = 0
	r.be.unregister(fd)
	fd.registered = false
	fd.wanted = 0
	fd.kernel = 0
	fd.handlerIn, fd.handlerOut, fd.handlerErr = nil, nil, nil
	if !fd.internal {
		r.numObjs--
	}
	r.stats.FDs--
}

// SetHandlerIn replaces the readable handler; nil stops watching the band.
func (fd *FD) SetHandlerIn(h func()) { fd.setHandler(&fd.handlerIn, &fd.HandlerIn, h) }

// SetHandlerOut replaces the writable handler; nil stops watching the band.
func (fd *FD) SetHandlerOut(h func()) { fd.setHandler(&fd.handlerOut, &fd.HandlerOut, h) }

// SetHandlerErr replaces the error handler; nil stops watching the band.
func (fd *FD) SetHandlerErr(h func()) { fd.setHandler(&fd.handlerErr, &fd.HandlerErr, h) }

func (fd *FD) setHandler(slot, public *func(), h func()) {
	if !fd.registered {
		Fatal("set handler on unregistered fd %d", fd.Fd)
	}
	*slot = h
	*public = h
	wanted := fd.computeWanted()
	if wanted == fd.wanted {
		return
	}
	fd.wanted = wanted
	fd.owner.be.notify(fd)
}
