// File: reactor/reactor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetDefaultLogger(nil)
	os.Exit(m.Run())
}

// eachBackend runs fn against a fresh reactor for every backend that
// initialises on this host.
func eachBackend(t *testing.T, fn func(t *testing.T, r *Reactor)) {
	t.Helper()
	for _, name := range BackendNames() {
		t.Run(name, func(t *testing.T) {
			r, err := New(withBackend(name), WithLogger(nil), WithName(t.Name()))
			if err != nil {
				t.Skipf("backend %s unavailable: %v", name, err)
			}
			t.Cleanup(r.Close)
			require.Equal(t, name, r.Stats().BackendName)
			fn(t, r)
		})
	}
}

// expectFatal runs fn and returns the message of the fatal error it raised.
func expectFatal(t *testing.T, fn func()) (msg string) {
	t.Helper()
	defer func() {
		v := recover()
		require.NotNil(t, v, "expected a fatal error")
		fe, ok := v.(*FatalError)
		require.True(t, ok, "panic value %T is not *FatalError", v)
		msg = fe.Message
	}()
	fn()
	return ""
}

func TestRunReturnsWhenEmpty(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			r.Run()
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return with nothing registered")
		}
		assert.Zero(t, r.Stats().Polls)
	})
}

func TestTimersFireInExpiryOrder(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		const n = 64
		base := r.Now()
		timers := make([]Timer, n)
		var got []int
		for _, i := range rand.Perm(n) {
			i := i
			timers[i] = Timer{
				Expires: base.Add(time.Duration(i+1) * 50 * time.Microsecond),
				Handler: func() { got = append(got, i) },
			}
			r.RegisterTimer(&timers[i])
		}
		assert.Equal(t, n, r.Stats().Timers)

		r.Run()

		want := make([]int, n)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, got)
		assert.EqualValues(t, n, r.Stats().TimersFired)
		for i := range timers {
			assert.False(t, timers[i].Registered())
		}
	})
}

func TestTimerReschedulesItself(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		var (
			tm    Timer
			fired int
		)
		tm.Handler = func() {
			fired++
			if fired < 3 {
				r.TimerAfter(&tm, time.Millisecond)
			}
		}
		r.TimerAfter(&tm, time.Millisecond)
		r.Run()
		assert.Equal(t, 3, fired)
	})
}

func TestTimerCancelsAnother(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		base := r.Now()
		var a, b Timer
		bFired := false
		b = Timer{Expires: base.Add(20 * time.Millisecond), Handler: func() { bFired = true }}
		a = Timer{Expires: base.Add(time.Millisecond), Handler: func() { r.UnregisterTimer(&b) }}
		r.RegisterTimer(&b)
		r.RegisterTimer(&a)
		r.Run()
		assert.False(t, bFired)
		assert.False(t, b.Registered())
	})
}

func TestTimerMisuseIsFatal(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		tm := Timer{Expires: r.Now().Add(time.Hour), Handler: func() {}}
		expectFatal(t, func() { r.UnregisterTimer(&tm) })

		r.RegisterTimer(&tm)
		expectFatal(t, func() { r.RegisterTimer(&tm) })
		r.UnregisterTimer(&tm)
		assert.Zero(t, r.Stats().Objects)
	})
}

func TestSelfRequeueingTaskDoesNotStarve(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		var (
			a, b  Task
			trace []byte
			bRuns int
		)
		a.Handler = func() {
			trace = append(trace, 'a')
			if bRuns < 3 {
				r.RegisterTask(&a)
			}
		}
		b.Handler = func() {
			trace = append(trace, 'b')
			bRuns++
			if bRuns < 3 {
				r.RegisterTask(&b)
			}
		}
		r.RegisterTask(&a)
		r.RegisterTask(&b)
		r.Run()
		assert.Equal(t, "abababa", string(trace))
	})
}

func TestTaskQueuedDuringDrainJoinsIt(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		var c, d Task
		dRan := false
		d.Handler = func() { dRan = true }
		c.Handler = func() { r.RegisterTask(&d) }
		r.RegisterTask(&c)
		r.Run()
		assert.True(t, dRan)
		// both ran in the first drain, before any poll
		assert.Zero(t, r.Stats().Polls)
		assert.EqualValues(t, 2, r.Stats().TasksRun)
	})
}

func TestUnregisterQueuedTask(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		var a, b Task
		bRan := false
		b.Handler = func() { bRan = true }
		a.Handler = func() { r.UnregisterTask(&b) }
		r.RegisterTask(&a)
		r.RegisterTask(&b)
		assert.True(t, b.Registered())
		r.Run()
		assert.False(t, bRan)
		assert.False(t, b.Registered())
		expectFatal(t, func() { r.UnregisterTask(&b) })
	})
}

func TestQuitStopsRun(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		far := Timer{Expires: r.Now().Add(time.Hour), Handler: func() {}}
		var stop Timer
		stop.Handler = r.Quit
		r.RegisterTimer(&far)
		r.TimerAfter(&stop, time.Millisecond)
		r.Run()
		assert.True(t, far.Registered())
		assert.Equal(t, 1, r.Stats().Objects)

		// the quit flag is reset on entry
		stop.Handler = func() { r.UnregisterTimer(&far) }
		r.TimerAfter(&stop, time.Millisecond)
		r.Run()
		assert.False(t, far.Registered())
	})
}

func TestRunInsideRunIsFatal(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		var task Task
		var msg string
		task.Handler = func() {
			msg = expectFatal(t, r.Run)
		}
		r.RegisterTask(&task)
		r.Run()
		assert.Contains(t, msg, "recursively")
	})
}

func TestFatalHandlerObservesMessage(t *testing.T) {
	var seen string
	SetFatalHandler(func(msg string) { seen = msg })
	defer SetFatalHandler(nil)

	msg := expectFatal(t, func() { Fatal("broken %d", 7) })
	assert.Equal(t, "broken 7", msg)
	assert.Equal(t, "broken 7", seen)
}

func TestProcessBackendSelected(t *testing.T) {
	r, err := New(WithLogger(nil))
	require.NoError(t, err)
	defer r.Close()
	assert.Contains(t, BackendNames(), BackendName())
	assert.Equal(t, BackendName(), r.Stats().BackendName)
}

func TestCloseIsIdempotent(t *testing.T) {
	r, err := New(WithLogger(nil))
	require.NoError(t, err)
	r.Close()
	r.Close()
	expectFatal(t, r.Run)
}
