//go:build windows

// File: internal/handlegroup/waiter_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WaitForMultipleObjects waiter. Index 0 of every wait is the group's own
// wake event, so a group carries at most MaxHandles members.

package handlegroup

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const (
	maximumWaitObjects = 64
	waitAbandoned0     = 0x80

	// MaxHandles is the per-group member ceiling on windows.
	MaxHandles = maximumWaitObjects - 1
)

type eventWaiter struct {
	wake windows.Handle
	buf  []windows.Handle
}

// NewEventWaiter returns a Waiter backed by an auto-reset wake event.
func NewEventWaiter() (Waiter, error) {
	ev, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateEvent: %w", err)
	}
	return &eventWaiter{wake: ev, buf: make([]windows.Handle, 0, maximumWaitObjects)}, nil
}

func (w *eventWaiter) Wait(handles []uintptr) (int, error) {
	w.buf = append(w.buf[:0], w.wake)
	for _, h := range handles {
		w.buf = append(w.buf, windows.Handle(h))
	}
	ev, err := windows.WaitForMultipleObjects(w.buf, false, windows.INFINITE)
	if err != nil {
		return -1, fmt.Errorf("WaitForMultipleObjects: %w", err)
	}
	n := uint32(len(w.buf))
	switch {
	case ev == windows.WAIT_OBJECT_0:
		return -1, nil
	case ev < windows.WAIT_OBJECT_0+n:
		return int(ev-windows.WAIT_OBJECT_0) - 1, nil
	case ev >= waitAbandoned0 && ev < waitAbandoned0+n:
		// an abandoned mutex is owned by the waiter all the same
		if ev == waitAbandoned0 {
			return -1, nil
		}
		return int(ev-waitAbandoned0) - 1, nil
	}
	return -1, fmt.Errorf("WaitForMultipleObjects: unexpected result %#x", ev)
}

func (w *eventWaiter) Wake() {
	_ = windows.SetEvent(w.wake)
}

func (w *eventWaiter) Close() error {
	return windows.CloseHandle(w.wake)
}
