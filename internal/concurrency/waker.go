// File: internal/concurrency/waker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Errors shared by the platform Waker implementations.

package concurrency

import "errors"

// ErrWakerClosed is returned by Signal after Close.
var ErrWakerClosed = errors.New("concurrency: waker closed")
