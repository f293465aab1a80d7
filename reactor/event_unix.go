//go:build unix

// File: reactor/event_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "github.com/momentics/hioload-iv/internal/concurrency"

// attach watches the waker descriptor without counting it as an object,
// so a reactor with no other registrations still exits.
func (s *eventState) attach(w *concurrency.Waker) error {
	s.wakeFD = FD{Fd: w.Fd(), HandlerIn: s.wake, internal: true}
	return s.r.RegisterFDChecked(&s.wakeFD)
}

func (s *eventState) detach() {
	if s.wakeFD.registered {
		s.r.UnregisterFD(&s.wakeFD)
	}
}
