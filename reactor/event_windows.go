//go:build windows

// File: reactor/event_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The handle backend always carries the wake natively, see eventRxBackend.

package reactor

import (
	"github.com/momentics/hioload-iv/api"
	"github.com/momentics/hioload-iv/internal/concurrency"
)

func (s *eventState) attach(*concurrency.Waker) error {
	return api.ErrNotSupported
}

func (s *eventState) detach() {}
