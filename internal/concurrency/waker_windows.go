//go:build windows

// File: internal/concurrency/waker_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Auto-reset event object Waker.

package concurrency

import (
	"sync/atomic"

	"golang.org/x/sys/windows"
)

type Waker struct {
	h      windows.Handle
	closed atomic.Bool
}

// NewWaker creates an unnamed auto-reset event in the non-signalled state.
func NewWaker() (*Waker, error) {
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	return &Waker{h: h}, nil
}

// Handle returns the waitable event handle.
func (w *Waker) Handle() windows.Handle { return w.h }

// Signal sets the event.
func (w *Waker) Signal() error {
	if w.closed.Load() {
		return ErrWakerClosed
	}
	return windows.SetEvent(w.h)
}

// Drain resets the event. A satisfied wait already reset it.
func (w *Waker) Drain() {
	_ = windows.ResetEvent(w.h)
}

// Close releases the event handle.
func (w *Waker) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	return windows.CloseHandle(w.h)
}
