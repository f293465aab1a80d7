// File: pool/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool state, submission and completion delivery.

package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-iv/api"
	"github.com/momentics/hioload-iv/control"
	"github.com/momentics/hioload-iv/reactor"
	"golang.org/x/sys/cpu"
)

var (
	metricSubmitted = control.Metrics().Counter("pool.items_submitted")
	metricCompleted = control.Metrics().Counter("pool.items_completed")
	metricStarted   = control.Metrics().Counter("pool.threads_started")
	metricLive      = control.Metrics().Counter("pool.threads_live")
)

// panicLimiter throttles logging of panics raised by work items.
var panicLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
})

type item struct {
	work     func()
	complete func()
}

// Pool runs work items on helper threads. Submit and Put must be called on
// the owner reactor's goroutine, where completions are delivered too.
//
// While the pool exists it keeps the owner reactor running; after Put the
// pool finishes once every worker has exited and every completion ran.
type Pool struct {
	owner       *reactor.Reactor
	log         *logiface.Logger[logiface.Event]
	name        string
	maxThreads  int
	idleTimeout time.Duration
	startHook   func(worker int)
	stopHook    func(worker int)
	pin         bool

	// owner thread only
	complete reactor.Event
	pending  int
	finished bool
	batch    []*item

	_       cpu.CacheLinePad
	mu      sync.Mutex
	work    *queue.Queue
	done    *queue.Queue
	idle    []*worker
	started int // counted against maxThreads; dropped once a worker commits to exiting
	live    int // threads whose reactor has not returned yet
	nextID  int
	closing bool
	_       cpu.CacheLinePad
}

var _ api.Executor = (*Pool)(nil)

// Stats is a snapshot of pool occupancy.
type Stats struct {
	MaxThreads int
	Threads    int
	Idle       int
	Queued     int
	Pending    int
}

// New creates an empty pool owned by r. Defaults come from the process
// configuration (pool.max_threads, pool.idle_timeout).
func New(r *reactor.Reactor, opts ...Option) (*Pool, error) {
	cfg := reactor.Config()
	o := options{
		name:        "pool",
		maxThreads:  cfg.MaxThreads,
		idleTimeout: cfg.IdleTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxThreads <= 0 {
		return nil, fmt.Errorf("pool: max threads %d: %w", o.maxThreads, api.ErrInvalidArgument)
	}
	if o.idleTimeout <= 0 {
		return nil, fmt.Errorf("pool: idle timeout %v: %w", o.idleTimeout, api.ErrInvalidArgument)
	}

	p := &Pool{
		owner:       r,
		name:        o.name,
		maxThreads:  o.maxThreads,
		idleTimeout: o.idleTimeout,
		startHook:   o.startHook,
		stopHook:    o.stopHook,
		pin:         o.pin,
		work:        queue.New(),
		done:        queue.New(),
	}
	if o.loggerSet {
		p.log = o.logger
	} else {
		p.log = reactor.DefaultLogger()
	}
	p.complete.Handler = p.deliver
	if err := r.RegisterEvent(&p.complete); err != nil {
		return nil, fmt.Errorf("pool: completion event: %w", err)
	}
	p.log.Debug().
		Str("pool", p.name).
		Int("max_threads", p.maxThreads).
		Dur("idle_timeout", p.idleTimeout).
		Log("pool created")
	return p, nil
}

// Submit queues work. An idle worker is woken if there is one, otherwise a
// new worker is started if the ceiling allows; failing to start it is
// returned and the item is not queued. complete may be nil.
func (p *Pool) Submit(work, complete func()) error {
	if work == nil {
		return fmt.Errorf("pool: nil work: %w", api.ErrInvalidArgument)
	}
	it := &item{work: work, complete: complete}

	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return api.ErrPoolClosed
	}
	var (
		kick  *worker
		spawn bool
		id    int
	)
	switch n := len(p.idle); {
	case n > 0:
		kick = p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		kick.idle = false
	case p.started < p.maxThreads:
		p.started++
		p.live++
		p.nextID++
		spawn, id = true, p.nextID
	}
	if !spawn {
		p.work.Add(it)
	}
	p.mu.Unlock()

	if spawn {
		w, err := p.spawn(id)
		if err != nil {
			p.mu.Lock()
			p.started--
			p.live--
			p.mu.Unlock()
			p.log.Warning().Str("pool", p.name).Err(err).Log("worker start failed")
			return api.NewError(api.ErrCodeResourceExhausted, "pool: start worker").
				WithContext("worker", id).
				WithCause(err)
		}
		p.mu.Lock()
		p.work.Add(it)
		p.mu.Unlock()
		kick = w
	}

	p.pending++
	metricSubmitted.Add(1)
	if kick != nil {
		kick.kick.Post()
	}
	return nil
}

// Put shuts the pool down. Queued items still run and their completions
// are still delivered; idle workers exit at once, busy ones when the queue
// is empty. Submit fails with api.ErrPoolClosed afterwards.
func (p *Pool) Put() {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	p.closing = true
	idle := p.idle
	p.idle = nil
	for _, w := range idle {
		w.idle = false
	}
	none := p.live == 0
	p.mu.Unlock()

	for _, w := range idle {
		w.kick.Post()
	}
	p.log.Debug().Str("pool", p.name).Int("idle_kicked", len(idle)).Log("pool shutting down")
	if none && p.pending == 0 {
		p.finish()
	}
}

// NumWorkers returns the number of worker threads counted against the
// ceiling. A worker already running its stop hook is not included.
func (p *Pool) NumWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Stats returns current occupancy. Pending counts items whose completion
// has not run yet; it is only meaningful on the owner's goroutine.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		MaxThreads: p.maxThreads,
		Threads:    p.started,
		Idle:       len(p.idle),
		Queued:     p.work.Length(),
		Pending:    p.pending,
	}
}

// Finished reports whether a Put pool has released the owner reactor.
func (p *Pool) Finished() bool { return p.finished }

// deliver runs completions on the owner thread.
func (p *Pool) deliver() {
	p.mu.Lock()
	for p.done.Length() > 0 {
		p.batch = append(p.batch, p.done.Remove().(*item))
	}
	drained := p.closing && p.live == 0
	p.mu.Unlock()

	for i, it := range p.batch {
		p.batch[i] = nil
		p.pending--
		metricCompleted.Add(1)
		if it.complete != nil {
			it.complete()
		}
	}
	p.batch = p.batch[:0]

	if drained && p.pending == 0 {
		p.finish()
	}
}

func (p *Pool) finish() {
	if p.finished {
		return
	}
	p.finished = true
	p.owner.UnregisterEvent(&p.complete)
	p.log.Debug().Str("pool", p.name).Log("pool finished")
}

// workerExited runs on the exiting worker thread after its stop hook.
func (p *Pool) workerExited() {
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
	metricLive.Add(-1)
	p.complete.Post()
}
