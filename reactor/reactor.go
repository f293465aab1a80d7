// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-thread reactor state and the main loop.

package reactor

import (
	"container/list"
	"runtime"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-iv/control"
	"github.com/momentics/hioload-iv/internal/timerheap"
)

// Reactor multiplexes descriptor readiness, timers, tasks and cross-thread
// events for exactly one goroutine, which Run locks to its OS thread.
//
// Every method except Event.Post must be called from the goroutine that
// owns the reactor.
type Reactor struct {
	be      backend
	log     *logiface.Logger[logiface.Event]
	name    string
	numObjs int
	quit    bool
	running bool
	closed  bool

	now      Time
	nowValid bool

	timers timerheap.Heap[*Timer]

	tasks     *list.List
	draining  *list.List
	taskEpoch uint64

	active []*FD

	ext []any

	stats Stats
}

// Stats is a snapshot of per-reactor counters.
type Stats struct {
	FDs               int
	Handles           int
	Timers            int
	Tasks             int
	Objects           int
	Polls             uint64
	FDsDispatched     uint64
	HandlesDispatched uint64
	TimersFired       uint64
	TasksRun          uint64
	EventsHandled     uint64
	BackendName       string
	ExtensionBytes    uintptr
}

var (
	metricPolls      = control.Metrics().Counter("reactor.polls")
	metricDispatched = control.Metrics().Counter("reactor.fds_dispatched")
	metricTimers     = control.Metrics().Counter("reactor.timers_fired")
	metricTasks      = control.Metrics().Counter("reactor.tasks_run")
	metricLive       = control.Metrics().Counter("reactor.live")
)

// New creates a reactor and its backend instance. The first call in the
// process also performs process-wide initialisation and backend selection.
// An error means no backend could be initialised for this reactor.
func New(opts ...Option) (*Reactor, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Reactor{
		name:  o.name,
		tasks: list.New(),
	}
	if o.loggerSet {
		r.log = o.logger
	} else {
		r.log = DefaultLogger()
	}

	be, err := newBackend(r, o.backend)
	if err != nil {
		return nil, err
	}
	r.be = be
	r.stats.BackendName = be.name()

	r.ext = initExtensions(r)
	metricLive.Add(1)

	r.log.Debug().
		Str("reactor", r.name).
		Str("backend", be.name()).
		Log("reactor created")
	return r, nil
}

// Run drives the loop until Quit is called or no registered objects remain.
// Each iteration runs due tasks, then due timers, then blocks in the
// backend until readiness, the next timer deadline, or a cross-thread wake,
// and finally dispatches readiness callbacks.
func (r *Reactor) Run() {
	if r.closed {
		fatal(r, "Run called on closed reactor")
	}
	if r.running {
		fatal(r, "Run called recursively")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r.running = true
	r.quit = false
	defer func() { r.running = false }()

	for {
		r.runTasks()
		r.runTimers()
		if r.quit || r.numObjs == 0 {
			return
		}

		timeout := r.pollTimeout()
		r.stats.Polls++
		metricPolls.Add(1)
		if err := r.be.poll(timeout); err != nil {
			fatal(r, "%s: poll: %v", r.be.name(), err)
		}
		r.InvalidateNow()
		r.dispatch()
	}
}

// Quit makes Run return once the current iteration finishes.
func (r *Reactor) Quit() {
	r.quit = true
}

// pollTimeout is zero with tasks pending, the time to the soonest timer if
// one is scheduled, and negative (block) otherwise.
func (r *Reactor) pollTimeout() time.Duration {
	if r.tasks.Len() > 0 {
		return 0
	}
	t, ok := r.timers.Peek()
	if !ok {
		return -1
	}
	d := Time(t.node.Expires).Sub(r.Now())
	if d < 0 {
		return 0
	}
	return d
}

// markReady is called by backends during poll for each observed band.
func (r *Reactor) markReady(fd *FD, bands Band) {
	bands &= fd.wanted
	if bands == 0 || !fd.registered {
		return
	}
	fd.ready |= bands
	if fd.activeIdx < 0 {
		fd.activeIdx = len(r.active)
		r.active = append(r.active, fd)
	}
}

func (r *Reactor) dispatch() {
	for i := 0; i < len(r.active); i++ {
		fd := r.active[i]
		if fd == nil {
			continue
		}
		r.active[i] = nil
		fd.activeIdx = -1
		bands, gen := fd.ready, fd.gen
		fd.ready = 0

		r.stats.FDsDispatched++
		metricDispatched.Add(1)

		// a handler may unregister this or any other descriptor, so the
		// registration is re-checked before every band
		if bands&BandErr != 0 && fd.live(r, gen) && fd.handlerErr != nil {
			fd.handlerErr()
		}
		if bands&BandIn != 0 && fd.live(r, gen) && fd.handlerIn != nil {
			fd.handlerIn()
		}
		if bands&BandOut != 0 && fd.live(r, gen) && fd.handlerOut != nil {
			fd.handlerOut()
		}
	}
	r.active = r.active[:0]
}

// Stats returns the reactor's counters.
func (r *Reactor) Stats() Stats {
	s := r.stats
	s.Timers = r.timers.Len()
	s.Tasks = r.tasks.Len()
	if r.draining != nil {
		s.Tasks += r.draining.Len()
	}
	s.Objects = r.numObjs
	s.ExtensionBytes = ExtensionBlockSize()
	return s
}

// Close releases the backend and runs extension teardown. Objects still
// registered are abandoned; their handlers will never run.
func (r *Reactor) Close() {
	if r.closed {
		return
	}
	if r.running {
		fatal(r, "Close called from within Run")
	}
	deinitExtensions(r)
	r.be.close()
	r.closed = true
	metricLive.Add(-1)
	r.log.Debug().Str("reactor", r.name).Log("reactor closed")
}
