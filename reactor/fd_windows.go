//go:build windows

// File: reactor/fd_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows has no descriptor readiness; waitable objects go through Handle.

package reactor

import (
	"errors"

	"github.com/momentics/hioload-iv/api"
)

func prepareDescriptor(int) error {
	return api.ErrNotSupported
}

func isUnsupported(err error) bool {
	return errors.Is(err, api.ErrNotSupported)
}
