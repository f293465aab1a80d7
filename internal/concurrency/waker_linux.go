//go:build linux

// File: internal/concurrency/waker_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// eventfd(2) based Waker.

package concurrency

import (
	"encoding/binary"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

type Waker struct {
	fd     int
	closed atomic.Bool
}

// NewWaker creates a non-blocking close-on-exec eventfd.
func NewWaker() (*Waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &Waker{fd: fd}, nil
}

// Fd returns the descriptor that becomes readable after Signal.
func (w *Waker) Fd() int { return w.fd }

// Signal makes Fd readable. Repeated signals before Drain coalesce.
func (w *Waker) Signal() error {
	if w.closed.Load() {
		return ErrWakerClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(w.fd, buf[:])
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			// counter saturated, already readable
			return nil
		}
		return err
	}
}

// Drain consumes every pending signal.
func (w *Waker) Drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != unix.EINTR {
			return
		}
	}
}

// Close releases the eventfd.
func (w *Waker) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	return unix.Close(w.fd)
}
