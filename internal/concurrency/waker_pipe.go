//go:build unix && !linux

// File: internal/concurrency/waker_pipe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Self-pipe Waker for unix systems without eventfd.

package concurrency

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

type Waker struct {
	r, w   int
	closed atomic.Bool
}

// NewWaker creates a non-blocking close-on-exec pipe pair.
func NewWaker() (*Waker, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, err
		}
	}
	return &Waker{r: fds[0], w: fds[1]}, nil
}

// Fd returns the read end of the pipe.
func (w *Waker) Fd() int { return w.r }

// Signal writes one byte. A full pipe is already readable.
func (w *Waker) Signal() error {
	if w.closed.Load() {
		return ErrWakerClosed
	}
	for {
		_, err := unix.Write(w.w, []byte{1})
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return nil
		}
		return err
	}
}

// Drain empties the pipe.
func (w *Waker) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.r, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || n < len(buf) {
			return
		}
	}
}

// Close releases both pipe ends.
func (w *Waker) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	err := unix.Close(w.w)
	if cerr := unix.Close(w.r); err == nil {
		err = cerr
	}
	return err
}
