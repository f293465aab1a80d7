//go:build linux

// File: internal/uring/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// io_uring kernel ABI: setup parameters, ring offsets, SQE and CQE layout.

package uring

import "unsafe"

const (
	IORING_OP_NOP         = 0
	IORING_OP_POLL_ADD    = 6
	IORING_OP_POLL_REMOVE = 7

	IORING_ENTER_GETEVENTS = 1 << 0
	IORING_ENTER_EXT_ARG   = 1 << 3

	IORING_FEAT_SINGLE_MMAP = 1 << 0
	IORING_FEAT_NODROP      = 1 << 1
	IORING_FEAT_EXT_ARG     = 1 << 8

	IORING_OFF_SQ_RING = 0
	IORING_OFF_CQ_RING = 0x8000000
	IORING_OFF_SQES    = 0x10000000
)

// SQRingOffsets mirrors struct io_sqring_offsets.
type SQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	UserAddr    uint64
}

// CQRingOffsets mirrors struct io_cqring_offsets.
type CQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	Cqes        uint32
	Flags       uint32
	Resv1       uint32
	UserAddr    uint64
}

// Params mirrors struct io_uring_params.
type Params struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        SQRingOffsets
	CQOff        CQRingOffsets
}

// SQE mirrors struct io_uring_sqe (64 bytes).
type SQE struct {
	Opcode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpFlags     uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_           uint64
}

// CQE mirrors struct io_uring_cqe (16 bytes, no CQE32).
type CQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// getEventsArg mirrors struct io_uring_getevents_arg.
type getEventsArg struct {
	Sigmask   uint64
	SigmaskSz uint32
	Pad       uint32
	Ts        uint64
}

// kernelTimespec mirrors struct __kernel_timespec.
type kernelTimespec struct {
	Sec  int64
	Nsec int64
}

const (
	sizeofParams = unsafe.Sizeof(Params{})
	sizeofSQE    = unsafe.Sizeof(SQE{})
	sizeofCQE    = unsafe.Sizeof(CQE{})
	sizeofArg    = unsafe.Sizeof(getEventsArg{})
)

// PreparePollAdd arms a one-shot poll for mask on fd.
func (s *SQE) PreparePollAdd(fd int, mask uint32, userData uint64) {
	*s = SQE{Opcode: IORING_OP_POLL_ADD, Fd: int32(fd), OpFlags: mask, UserData: userData}
}

// PreparePollRemove cancels the poll previously submitted with target.
func (s *SQE) PreparePollRemove(target, userData uint64) {
	*s = SQE{Opcode: IORING_OP_POLL_REMOVE, Fd: -1, Addr: target, UserData: userData}
}

// PrepareNop queues a no-op completion.
func (s *SQE) PrepareNop(userData uint64) {
	*s = SQE{Opcode: IORING_OP_NOP, Fd: -1, UserData: userData}
}
