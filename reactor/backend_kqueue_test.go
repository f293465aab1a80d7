//go:build darwin || freebsd

// File: reactor/backend_kqueue_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newKqueueReactor(t *testing.T) *Reactor {
	t.Helper()
	r, err := New(withBackend("kqueue"), WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestKqueueAddOnClosedDescriptorIsFatal(t *testing.T) {
	r := newKqueueReactor(t)
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	defer unix.Close(p[1])

	fd := &FD{Fd: p[0]}
	r.RegisterFD(fd)
	require.NoError(t, unix.Close(p[0]))
	// the filter is only added at the next flush, after the close
	fd.SetHandlerIn(func() {})

	msg := expectFatal(t, r.Run)
	assert.Contains(t, msg, "kevent change")
}

func TestKqueueDeleteOnClosedDescriptorIsIgnored(t *testing.T) {
	r := newKqueueReactor(t)
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	defer unix.Close(p[1])
	_, err := unix.Write(p[1], []byte("x"))
	require.NoError(t, err)

	calls := 0
	fd := &FD{Fd: p[0]}
	fd.HandlerIn = func() {
		calls++
		r.UnregisterFD(fd)
		// the queued delete now targets a closed descriptor
		assert.NoError(t, unix.Close(p[0]))
	}
	r.RegisterFD(fd)

	var linger Timer
	linger.Handler = func() {}
	r.TimerAfter(&linger, 20*time.Millisecond)

	r.Run()
	assert.Equal(t, 1, calls)
	assert.False(t, linger.Registered())
}
