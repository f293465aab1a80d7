// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor is a single-threaded I/O reactor: each Reactor multiplexes
// descriptor readiness, timers, deferred tasks and cross-thread events for
// the one goroutine that runs it, locked to its OS thread.
//
// The poll backend is chosen once per process at first New, from a fixed
// preference list (epoll, uring, poll on Linux; kqueue, poll on the BSDs and
// darwin; handle on Windows) minus any method named in IV_EXCLUDE_POLL_METHOD.
//
// A loop iteration runs queued tasks, then due timers, then blocks in the
// backend until readiness, the soonest deadline or a cross-thread Post, and
// finally dispatches readiness handlers in error, in, out order. Run returns
// after Quit, or once nothing is registered.
//
// The first New also raises the descriptor soft limit to the hard limit and
// ignores SIGPIPE, so a write to a closed peer returns EPIPE. SIGURG is left
// to the Go runtime, which uses it for preemption and never lets it end the
// process.
//
// Contract violations (double registration, unregistering an unknown
// object, extension registration after the first reactor) are fatal; see
// Fatal and SetFatalHandler.
package reactor
