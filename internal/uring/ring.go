//go:build linux

// File: internal/uring/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Minimal io_uring instance: ring setup, SQE allocation, submission and
// completion reaping with a bounded wait.

// Package uring is a small io_uring binding sufficient for readiness
// polling through IORING_OP_POLL_ADD. It requires IORING_FEAT_EXT_ARG so
// that waits can carry a timeout without consuming a submission slot.
package uring

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrUnsupported is returned by New when the kernel lacks io_uring or a
// feature this package depends on.
var ErrUnsupported = errors.New("uring: not supported by kernel")

// Ring is one io_uring instance. Not safe for concurrent use.
type Ring struct {
	fd       int
	features uint32

	sqMem  []byte
	cqMem  []byte
	sqeMem []byte

	sqHead  *uint32
	sqTail  *uint32
	sqMask  uint32
	sqCount uint32
	sqes    []SQE
	sqLocal uint32

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   []CQE

	// wait arguments are kept in the heap-allocated Ring because the kernel
	// receives their addresses as plain integers
	arg getEventsArg
	ts  kernelTimespec
}

// New sets up a ring with at least entries submission slots.
func New(entries uint32) (*Ring, error) {
	var p Params
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		if errno == unix.ENOSYS || errno == unix.EPERM {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, errno)
		}
		return nil, fmt.Errorf("uring: setup: %w", errno)
	}
	r := &Ring{fd: int(fd), features: p.Features}
	if p.Features&IORING_FEAT_EXT_ARG == 0 {
		r.Close()
		return nil, fmt.Errorf("%w: IORING_FEAT_EXT_ARG", ErrUnsupported)
	}
	if err := r.mapRings(&p); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Ring) mapRings(p *Params) error {
	sqSize := int(p.SQOff.Array) + int(p.SQEntries)*4
	cqSize := int(p.CQOff.Cqes) + int(p.CQEntries)*int(sizeofCQE)
	if p.Features&IORING_FEAT_SINGLE_MMAP != 0 {
		sqSize = max(sqSize, cqSize)
	}

	var err error
	r.sqMem, err = unix.Mmap(r.fd, IORING_OFF_SQ_RING, sqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("uring: mmap sq ring: %w", err)
	}
	if p.Features&IORING_FEAT_SINGLE_MMAP != 0 {
		r.cqMem = r.sqMem
	} else {
		r.cqMem, err = unix.Mmap(r.fd, IORING_OFF_CQ_RING, cqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			return fmt.Errorf("uring: mmap cq ring: %w", err)
		}
	}
	r.sqeMem, err = unix.Mmap(r.fd, IORING_OFF_SQES, int(p.SQEntries)*int(sizeofSQE), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("uring: mmap sqes: %w", err)
	}

	r.sqHead = u32At(r.sqMem, p.SQOff.Head)
	r.sqTail = u32At(r.sqMem, p.SQOff.Tail)
	r.sqMask = *u32At(r.sqMem, p.SQOff.RingMask)
	r.sqCount = *u32At(r.sqMem, p.SQOff.RingEntries)
	r.sqes = unsafe.Slice((*SQE)(unsafe.Pointer(&r.sqeMem[0])), p.SQEntries)
	r.sqLocal = atomic.LoadUint32(r.sqTail)

	// identity mapping from ring slot to SQE index
	array := unsafe.Slice(u32At(r.sqMem, p.SQOff.Array), p.SQEntries)
	for i := range array {
		array[i] = uint32(i)
	}

	r.cqHead = u32At(r.cqMem, p.CQOff.Head)
	r.cqTail = u32At(r.cqMem, p.CQOff.Tail)
	r.cqMask = *u32At(r.cqMem, p.CQOff.RingMask)
	r.cqes = unsafe.Slice((*CQE)(unsafe.Pointer(&r.cqMem[p.CQOff.Cqes])), p.CQEntries)
	return nil
}

func u32At(mem []byte, off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&mem[off]))
}

// Features returns the IORING_FEAT_* mask reported at setup.
func (r *Ring) Features() uint32 { return r.features }

// Pending returns the number of SQEs allocated but not yet submitted.
func (r *Ring) Pending() uint32 {
	return r.sqLocal - atomic.LoadUint32(r.sqTail)
}

// GetSQE returns the next free submission entry, or nil when the
// submission queue is full.
func (r *Ring) GetSQE() *SQE {
	head := atomic.LoadUint32(r.sqHead)
	if r.sqLocal-head >= r.sqCount {
		return nil
	}
	sqe := &r.sqes[r.sqLocal&r.sqMask]
	r.sqLocal++
	return sqe
}

// Submit hands every queued SQE to the kernel without waiting.
func (r *Ring) Submit() error {
	_, err := r.enter(0, 0, -1)
	return err
}

// SubmitAndWait submits queued SQEs and blocks until at least one
// completion is available or timeout elapses. A negative timeout blocks
// indefinitely. Timeout expiry is not an error. EINTR is returned to the
// caller so it can re-evaluate its deadline.
func (r *Ring) SubmitAndWait(timeout time.Duration) error {
	_, err := r.enter(1, IORING_ENTER_GETEVENTS, timeout)
	if err == unix.ETIME {
		return nil
	}
	return err
}

func (r *Ring) enter(minComplete, flags uint32, timeout time.Duration) (int, error) {
	tail := atomic.LoadUint32(r.sqTail)
	toSubmit := r.sqLocal - tail
	atomic.StoreUint32(r.sqTail, r.sqLocal)

	var argp, argsz uintptr
	if flags&IORING_ENTER_GETEVENTS != 0 {
		r.arg = getEventsArg{}
		if timeout >= 0 {
			r.ts = kernelTimespec{Sec: int64(timeout / time.Second), Nsec: int64(timeout % time.Second)}
			r.arg.Ts = uint64(uintptr(unsafe.Pointer(&r.ts)))
		}
		flags |= IORING_ENTER_EXT_ARG
		argp, argsz = uintptr(unsafe.Pointer(&r.arg)), sizeofArg
	}
	n, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(r.fd), uintptr(toSubmit),
		uintptr(minComplete), uintptr(flags), argp, argsz)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// PeekCQE returns the oldest unconsumed completion. The entry is valid
// until the matching Advance.
func (r *Ring) PeekCQE() (*CQE, bool) {
	head := atomic.LoadUint32(r.cqHead)
	if head == atomic.LoadUint32(r.cqTail) {
		return nil, false
	}
	return &r.cqes[head&r.cqMask], true
}

// Advance consumes n completions.
func (r *Ring) Advance(n uint32) {
	atomic.AddUint32(r.cqHead, n)
}

// Close unmaps the rings and closes the instance.
func (r *Ring) Close() error {
	if r.sqeMem != nil {
		unix.Munmap(r.sqeMem)
		r.sqeMem = nil
	}
	if r.cqMem != nil && len(r.sqMem) > 0 && &r.cqMem[0] != &r.sqMem[0] {
		unix.Munmap(r.cqMem)
	}
	r.cqMem = nil
	if r.sqMem != nil {
		unix.Munmap(r.sqMem)
		r.sqMem = nil
	}
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	return err
}
