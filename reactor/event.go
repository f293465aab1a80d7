// File: reactor/event.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-thread events. Each reactor lazily owns one kernel wake object
// shared by all of its logical events; posts append to a locked pending
// list and only the post that makes the list non-empty signals the wake.

package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-iv/control"
	"github.com/momentics/hioload-iv/internal/concurrency"
	"golang.org/x/sys/cpu"
)

// Event runs Handler on its owning reactor after Post is called from any
// goroutine. Posts made while the event is already pending coalesce into
// one Handler call.
type Event struct {
	Handler func()

	owner      atomic.Pointer[eventState]
	registered bool // guarded by owner.mu
	pending    bool // guarded by owner.mu
}

// eventRxBackend is implemented by backends that can multiplex the
// cross-thread wake directly into their own wait call.
type eventRxBackend interface {
	eventRxOn() error
	eventRxOff()
	eventSend()
}

type eventState struct {
	r     *Reactor
	count int

	_       cpu.CacheLinePad
	mu      sync.Mutex
	pending []*Event
	spare   []*Event
	waker   *concurrency.Waker
	native  eventRxBackend
	_       cpu.CacheLinePad

	wakeFD FD
}

var metricEventsPosted = control.Metrics().Counter("reactor.events_posted")

var eventExt = RegisterExtension(
	func(r *Reactor, s *eventState) { s.r = r },
	func(r *Reactor, s *eventState) {
		if s.count > 0 {
			s.release()
		}
	},
)

// RegisterEvent attaches ev to r. The first event on a reactor acquires
// the wake object, which may fail with a resource error.
func (r *Reactor) RegisterEvent(ev *Event) error {
	s := eventExt.Get(r)
	if cur := ev.owner.Load(); cur != nil {
		cur.mu.Lock()
		registered := ev.registered
		cur.mu.Unlock()
		if registered {
			fatal(r, "event already registered")
		}
	}
	if s.count == 0 {
		if err := s.acquire(); err != nil {
			return err
		}
	}
	s.count++
	ev.owner.Store(s)
	s.mu.Lock()
	ev.registered = true
	ev.pending = false
	s.mu.Unlock()
	r.numObjs++
	return nil
}

// UnregisterEvent detaches ev. A pending post is discarded.
func (r *Reactor) UnregisterEvent(ev *Event) {
	s := eventExt.Get(r)
	if ev.owner.Load() != s {
		fatal(r, "event not registered with this reactor")
	}
	s.mu.Lock()
	if !ev.registered {
		s.mu.Unlock()
		fatal(r, "event not registered")
	}
	ev.registered = false
	if ev.pending {
		ev.pending = false
		for i, p := range s.pending {
			if p == ev {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	r.numObjs--
	s.count--
	if s.count == 0 {
		s.release()
	}
}

// Post schedules Handler on the owning reactor. Safe from any goroutine.
// Posting an unregistered event does nothing.
func (ev *Event) Post() {
	s := ev.owner.Load()
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ev.registered || ev.pending {
		return
	}
	ev.pending = true
	s.pending = append(s.pending, ev)
	metricEventsPosted.Add(1)
	if len(s.pending) > 1 {
		return
	}
	// signalled under the lock so release cannot close the wake object
	// between the check and the signal
	if s.native != nil {
		s.native.eventSend()
	} else if s.waker != nil {
		if err := s.waker.Signal(); err != nil {
			limited("event.signal", s.r.log.Err()).Err(err).Log("event wake failed")
		}
	}
}

func (s *eventState) acquire() error {
	if rx, ok := s.r.be.(eventRxBackend); ok {
		if err := rx.eventRxOn(); err == nil {
			s.mu.Lock()
			s.native = rx
			s.mu.Unlock()
			return nil
		}
	}
	w, err := concurrency.NewWaker()
	if err != nil {
		return err
	}
	if err := s.attach(w); err != nil {
		w.Close()
		return err
	}
	s.mu.Lock()
	s.waker = w
	s.mu.Unlock()
	return nil
}

func (s *eventState) release() {
	s.mu.Lock()
	w, native := s.waker, s.native
	s.waker, s.native = nil, nil
	s.mu.Unlock()
	if native != nil {
		native.eventRxOff()
	}
	if w != nil {
		s.detach()
		w.Close()
	}
}

// wake runs on the owner thread whenever the wake object fires.
func (s *eventState) wake() {
	if s.waker != nil {
		s.waker.Drain()
	}
	s.mu.Lock()
	list := s.pending
	s.pending = s.spare[:0]
	for _, ev := range list {
		ev.pending = false
	}
	s.mu.Unlock()

	for i, ev := range list {
		list[i] = nil
		if ev.registered && ev.owner.Load() == s {
			s.r.stats.EventsHandled++
			ev.Handler()
		}
	}
	s.spare = list[:0]
}

// runEvents is called by backends implementing eventRxBackend.
func (r *Reactor) runEvents() {
	eventExt.Get(r).wake()
}
