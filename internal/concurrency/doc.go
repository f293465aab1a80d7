// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-thread wake primitives for the reactor.
//
// A Waker is a reusable kernel-level wake signal. Signal may be called from
// any goroutine; Drain and Close belong to the owning thread. On Linux it is
// an eventfd, on other unix systems a non-blocking self-pipe, and on Windows
// an auto-reset event object. The readable side is exposed through Fd (unix)
// or Handle (windows) so a poll backend can watch it like any other object.
package concurrency
