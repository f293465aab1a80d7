// File: pool/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker threads: a private reactor woken by a kick event, draining the
// shared queue, and an idle timer ending the thread.

package pool

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-iv/affinity"
	"github.com/momentics/hioload-iv/reactor"
)

type worker struct {
	p      *Pool
	id     int
	r      *reactor.Reactor
	kick   reactor.Event
	expiry reactor.Timer
	idle   bool // guarded by p.mu
}

// spawn starts a worker thread and waits until its reactor is ready.
func (p *Pool) spawn(id int) (*worker, error) {
	w := &worker{p: p, id: id}
	w.kick.Handler = w.drain
	w.expiry.Handler = w.expire
	ready := make(chan error, 1)
	go w.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	metricStarted.Add(1)
	metricLive.Add(1)
	return w, nil
}

func (w *worker) run(ready chan<- error) {
	p := w.p
	runtime.LockOSThread()
	pinned := false
	if p.pin {
		cpu := affinity.CPUForWorker(w.id - 1)
		if err := affinity.SetAffinity(cpu); err != nil {
			p.log.Warning().Str("pool", p.name).Int("worker", w.id).Err(err).Log("cpu pinning failed")
		} else {
			pinned = true
		}
	}
	if !pinned {
		defer runtime.UnlockOSThread()
	}
	// a pinned thread is left locked so it exits with the goroutine

	r, err := reactor.New(
		reactor.WithLogger(p.log),
		reactor.WithName(fmt.Sprintf("%s/worker-%d", p.name, w.id)),
	)
	if err != nil {
		ready <- err
		return
	}
	defer r.Close()
	w.r = r
	if err := r.RegisterEvent(&w.kick); err != nil {
		ready <- err
		return
	}
	if p.startHook != nil {
		p.startHook(w.id)
	}
	ready <- nil

	r.Run()

	if p.stopHook != nil {
		p.stopHook(w.id)
	}
	p.log.Debug().Str("pool", p.name).Int("worker", w.id).Log("worker exited")
	p.workerExited()
}

// drain runs queued items until the queue is empty, then idles or, when
// the pool is shutting down, exits.
func (w *worker) drain() {
	p := w.p
	if w.expiry.Registered() {
		w.r.UnregisterTimer(&w.expiry)
	}
	for {
		p.mu.Lock()
		if p.work.Length() == 0 {
			if p.closing {
				p.started--
				p.mu.Unlock()
				w.exit()
				return
			}
			if !w.idle {
				w.idle = true
				p.idle = append(p.idle, w)
			}
			p.mu.Unlock()
			w.r.TimerAfter(&w.expiry, p.idleTimeout)
			return
		}
		it := p.work.Remove().(*item)
		p.mu.Unlock()

		w.execute(it)

		p.mu.Lock()
		p.done.Add(it)
		p.mu.Unlock()
		p.complete.Post()
	}
}

func (w *worker) execute(it *item) {
	defer func() {
		if v := recover(); v != nil {
			if _, ok := panicLimiter.Allow(w.p.name); ok {
				w.p.log.Err().
					Str("pool", w.p.name).
					Int("worker", w.id).
					Str("panic", fmt.Sprint(v)).
					Log("work item panicked")
			}
			panic(v)
		}
	}()
	it.work()
}

// expire ends an idle worker. A worker taken off the idle list has a kick
// pending and keeps running. The slot is released here, not when the
// thread is gone, so a Submit racing the stop hook starts a new worker.
func (w *worker) expire() {
	p := w.p
	p.mu.Lock()
	if !w.idle {
		p.mu.Unlock()
		return
	}
	for i, x := range p.idle {
		if x == w {
			last := len(p.idle) - 1
			p.idle[i] = p.idle[last]
			p.idle[last] = nil
			p.idle = p.idle[:last]
			break
		}
	}
	w.idle = false
	p.started--
	p.mu.Unlock()
	w.exit()
}

func (w *worker) exit() {
	if w.expiry.Registered() {
		w.r.UnregisterTimer(&w.expiry)
	}
	w.r.UnregisterEvent(&w.kick)
}
