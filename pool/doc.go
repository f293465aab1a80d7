// Package pool
// Author: momentics <momentics@gmail.com>
//
// Worker pool offloading blocking work from a reactor thread.
//
// Each worker is an OS thread running a private reactor. Work items run on
// a worker; their completion callbacks are delivered back on the thread of
// the reactor that owns the pool, through a cross-thread event. Threads are
// started lazily up to a ceiling and exit after an idle timeout.
package pool
