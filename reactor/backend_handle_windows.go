//go:build windows

// File: reactor/backend_handle_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle-wait backend. Waitable handles are spread over process-wide
// handle groups, each a thread blocked in WaitForMultipleObjects; a
// signalled handle is queued to its reactor, which blocks on a single
// auto-reset event between iterations.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-iv/api"
	"github.com/momentics/hioload-iv/control"
	"github.com/momentics/hioload-iv/internal/concurrency"
	"github.com/momentics/hioload-iv/internal/handlegroup"
	"golang.org/x/sys/cpu"
	"golang.org/x/sys/windows"
)

const waitTimeout = 0x102

var (
	groupsOnce sync.Once
	groups     *handlegroup.Manager
)

func handleGroups() *handlegroup.Manager {
	groupsOnce.Do(func() {
		groups = handlegroup.NewManager(handlegroup.MaxHandles, handlegroup.NewEventWaiter)
		// a failing wait means a registered handle is no longer valid, so
		// the group's view of its members cannot be trusted
		groups.OnWaitError = func(err error) {
			Fatal("handle group wait: %v", err)
		}
		control.Probes().RegisterProbe("handlegroup.stats", func() any { return groups.Stats() })
	})
	return groups
}

// handleSignal identifies one registration generation of a handle.
type handleSignal struct {
	h   *Handle
	gen uint64
}

type handleBackend struct {
	r       *Reactor
	wake    *concurrency.Waker
	home    *handlegroup.Group
	handles map[*Handle]struct{}

	_         cpu.CacheLinePad
	mu        sync.Mutex
	signalled []handleSignal
	eventsOn  bool
	eventHit  atomic.Bool
	_         cpu.CacheLinePad

	batch []handleSignal
}

func newHandleBackend() backend { return &handleBackend{} }

func (b *handleBackend) name() string { return "handle" }

func (b *handleBackend) init(r *Reactor, maxFDs int) error {
	w, err := concurrency.NewWaker()
	if err != nil {
		return fmt.Errorf("CreateEvent: %w", err)
	}
	b.r = r
	b.wake = w
	b.handles = make(map[*Handle]struct{})
	handleGroups()
	return nil
}

func (b *handleBackend) register(*FD)   {}
func (b *handleBackend) unregister(*FD) {}
func (b *handleBackend) notify(*FD)     {}

func (b *handleBackend) notifyFDSync(*FD) error { return api.ErrNotSupported }

// post runs on a group thread.
func (b *handleBackend) post(h *Handle, gen uint64) {
	b.mu.Lock()
	b.signalled = append(b.signalled, handleSignal{h, gen})
	first := len(b.signalled) == 1
	b.mu.Unlock()
	if first {
		b.signal()
	}
}

func (b *handleBackend) signal() {
	if err := b.wake.Signal(); err != nil && !errors.Is(err, concurrency.ErrWakerClosed) {
		limited("handle.wake", b.r.log.Err()).Err(err).Log("reactor wake failed")
	}
}

func (b *handleBackend) poll(timeout time.Duration) error {
	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(msTimeout(timeout))
	}
	ev, err := windows.WaitForSingleObject(b.wake.Handle(), ms)
	if err != nil {
		return fmt.Errorf("WaitForSingleObject: %w", err)
	}
	if ev == waitTimeout {
		return nil
	}

	if b.eventHit.Swap(false) {
		b.r.runEvents()
	}

	b.mu.Lock()
	b.batch, b.signalled = b.signalled, b.batch[:0]
	b.mu.Unlock()
	for i, s := range b.batch {
		b.batch[i] = handleSignal{}
		h := s.h
		if !h.live(b.r, s.gen) {
			continue
		}
		b.r.stats.HandlesDispatched++
		metricDispatched.Add(1)
		h.handler()
		if h.live(b.r, s.gen) {
			handleGroups().Resume(&h.member)
		}
	}
	return nil
}

func (b *handleBackend) eventRxOn() error {
	b.mu.Lock()
	b.eventsOn = true
	b.mu.Unlock()
	return nil
}

func (b *handleBackend) eventRxOff() {
	b.mu.Lock()
	b.eventsOn = false
	b.mu.Unlock()
}

// eventSend is called from any goroutine.
func (b *handleBackend) eventSend() {
	b.mu.Lock()
	on := b.eventsOn
	b.mu.Unlock()
	if on {
		b.eventHit.Store(true)
		b.signal()
	}
}

// close drops every handle still registered so group threads stop
// reporting to this reactor. The waker stays allocated, closed, for group
// threads that already picked up a signal.
func (b *handleBackend) close() {
	m := handleGroups()
	for h := range b.handles {
		m.Remove(&h.member)
		h.registered = false
	}
	clear(b.handles)
	b.wake.Close()
}
