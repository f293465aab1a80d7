//go:build windows

// File: reactor/handle_windows_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func newAutoResetEvent(t *testing.T) windows.Handle {
	t.Helper()
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { windows.CloseHandle(h) })
	return h
}

func TestHandleSignalRunsHandler(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		hs := make([]Handle, 100)
		fired := 0
		for i := range hs {
			h := &hs[i]
			h.Handle = newAutoResetEvent(t)
			h.Handler = func() {
				fired++
				r.UnregisterHandle(h)
			}
			require.NoError(t, r.RegisterHandle(h))
		}
		assert.Equal(t, len(hs), r.Stats().Handles)

		go func() {
			for i := range hs {
				windows.SetEvent(hs[i].Handle)
			}
		}()
		r.Run()
		assert.Equal(t, len(hs), fired)
		assert.Zero(t, r.Stats().Handles)
	})
}

func TestHandleRearmsAfterHandler(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		var h Handle
		h.Handle = newAutoResetEvent(t)
		fired := 0
		h.Handler = func() {
			fired++
			if fired == 3 {
				r.UnregisterHandle(&h)
				return
			}
			windows.SetEvent(h.Handle)
		}
		require.NoError(t, r.RegisterHandle(&h))
		windows.SetEvent(h.Handle)
		r.Run()
		assert.Equal(t, 3, fired)
	})
}

func TestDescriptorsUnsupported(t *testing.T) {
	eachBackend(t, func(t *testing.T, r *Reactor) {
		err := r.RegisterFDChecked(&FD{Fd: 3, HandlerIn: func() {}})
		assert.Error(t, err)
	})
}

func TestHandleGroupWaitFailureIsFatal(t *testing.T) {
	msg := expectFatal(t, func() {
		handleGroups().OnWaitError(errors.New("invalid handle"))
	})
	assert.Contains(t, msg, "handle group wait")
	assert.Contains(t, msg, "invalid handle")
}
