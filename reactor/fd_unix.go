//go:build unix

// File: reactor/fd_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"errors"

	"github.com/momentics/hioload-iv/api"
	"golang.org/x/sys/unix"
)

// prepareDescriptor switches fd to non-blocking close-on-exec mode.
func prepareDescriptor(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	_, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC)
	return err
}

// validateDescriptor checks that fd is open.
func validateDescriptor(fd int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err
}

func isUnsupported(err error) bool {
	return errors.Is(err, api.ErrNotSupported) || errors.Is(err, unix.EPERM)
}
