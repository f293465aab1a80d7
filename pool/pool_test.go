// File: pool/pool_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-iv/api"
	"github.com/momentics/hioload-iv/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOwner(t *testing.T) *reactor.Reactor {
	t.Helper()
	r, err := reactor.New(reactor.WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

// runOwner hands r to a fresh goroutine, runs it, and waits for Run to
// return.
func runOwner(t *testing.T, r *reactor.Reactor, limit time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run()
	}()
	select {
	case <-done:
	case <-time.After(limit):
		t.Fatal("owner reactor still running at deadline")
	}
}

func TestConcurrencyCappedAndCompletionsDelivered(t *testing.T) {
	r := newOwner(t)
	p, err := New(r, WithMaxThreads(2), WithLogger(nil))
	require.NoError(t, err)

	var running, peak atomic.Int32
	completed := 0
	work := func() {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
		running.Add(-1)
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(work, func() {
			completed++
			if completed == 4 {
				p.Put()
			}
		}))
	}
	assert.LessOrEqual(t, p.NumWorkers(), 2)

	runOwner(t, r, 10*time.Second)

	assert.Equal(t, 4, completed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.True(t, p.Finished())
	st := p.Stats()
	assert.Zero(t, st.Threads)
	assert.Zero(t, st.Pending)
}

func TestSubmitAfterPut(t *testing.T) {
	r := newOwner(t)
	p, err := New(r, WithMaxThreads(1), WithLogger(nil))
	require.NoError(t, err)
	p.Put()
	assert.True(t, p.Finished())
	err = p.Submit(func() {}, nil)
	assert.True(t, errors.Is(err, api.ErrPoolClosed))

	// nothing keeps the owner alive any more
	runOwner(t, r, 5*time.Second)
}

func TestIdleWorkerExits(t *testing.T) {
	r := newOwner(t)
	var stops atomic.Int32
	p, err := New(r,
		WithMaxThreads(1),
		WithIdleTimeout(20*time.Millisecond),
		WithStopHook(func(int) { stops.Add(1) }),
		WithLogger(nil),
	)
	require.NoError(t, err)

	require.NoError(t, p.Submit(func() {}, nil))
	var check reactor.Timer
	check.Handler = func() {
		if p.NumWorkers() > 0 {
			r.TimerAfter(&check, 10*time.Millisecond)
			return
		}
		p.Put()
	}
	r.TimerAfter(&check, 10*time.Millisecond)
	runOwner(t, r, 10*time.Second)

	assert.EqualValues(t, 1, stops.Load())
	assert.Zero(t, p.NumWorkers())
}

func TestSubmitWhileWorkerStopsStartsReplacement(t *testing.T) {
	r := newOwner(t)
	stopping := make(chan struct{}, 1)
	release := make(chan struct{})
	var stops atomic.Int32
	p, err := New(r,
		WithMaxThreads(1),
		WithIdleTimeout(20*time.Millisecond),
		WithStopHook(func(int) {
			if stops.Add(1) == 1 {
				stopping <- struct{}{}
				<-release
			}
		}),
		WithLogger(nil),
	)
	require.NoError(t, err)
	require.NoError(t, p.Submit(func() {}, nil))

	// the first worker idles out and blocks in its stop hook; the second
	// item must still get a thread
	var ran atomic.Bool
	var wait reactor.Timer
	wait.Handler = func() {
		select {
		case <-stopping:
			assert.Zero(t, p.NumWorkers())
			assert.NoError(t, p.Submit(func() { ran.Store(true) }, p.Put))
			close(release)
		default:
			r.TimerAfter(&wait, 5*time.Millisecond)
		}
	}
	r.TimerAfter(&wait, 5*time.Millisecond)
	runOwner(t, r, 10*time.Second)

	assert.True(t, ran.Load())
	assert.True(t, p.Finished())
	assert.EqualValues(t, 2, stops.Load())
	st := p.Stats()
	assert.Zero(t, st.Threads)
	assert.Zero(t, st.Queued)
	assert.Zero(t, st.Pending)
}

func TestHooksRunOnWorkerThreads(t *testing.T) {
	r := newOwner(t)
	var (
		mu     sync.Mutex
		starts []int
		stops  []int
	)
	p, err := New(r,
		WithMaxThreads(3),
		WithStartHook(func(id int) { mu.Lock(); starts = append(starts, id); mu.Unlock() }),
		WithStopHook(func(id int) { mu.Lock(); stops = append(stops, id); mu.Unlock() }),
		WithCPUPinning(true),
		WithLogger(nil),
	)
	require.NoError(t, err)

	release := make(chan struct{})
	done := 0
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(func() { <-release }, func() {
			done++
			if done == 3 {
				p.Put()
			}
		}))
	}
	assert.Equal(t, 3, p.NumWorkers())
	close(release)
	runOwner(t, r, 10*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3}, starts)
	assert.ElementsMatch(t, []int{1, 2, 3}, stops)
}

func TestQueuedItemsRunAfterPut(t *testing.T) {
	r := newOwner(t)
	p, err := New(r, WithMaxThreads(1), WithLogger(nil))
	require.NoError(t, err)

	var ran atomic.Int32
	completed := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func() { ran.Add(1) }, func() { completed++ }))
	}
	p.Put()
	runOwner(t, r, 10*time.Second)
	assert.EqualValues(t, 10, ran.Load())
	assert.Equal(t, 10, completed)
}

func TestOptionValidation(t *testing.T) {
	r := newOwner(t)
	_, err := New(r, WithMaxThreads(0))
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = New(r, WithMaxThreads(1), WithIdleTimeout(-time.Second))
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))

	p, err := New(r, WithMaxThreads(1), WithLogger(nil))
	require.NoError(t, err)
	assert.True(t, errors.Is(p.Submit(nil, nil), api.ErrInvalidArgument))
	p.Put()
}
