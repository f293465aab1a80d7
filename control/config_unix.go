//go:build unix

// control/config_unix.go
// Author: momentics <momentics@gmail.com>

package control

import "golang.org/x/sys/unix"

// identityMatches reports whether the real and effective ids agree.
func identityMatches() bool {
	return unix.Getuid() == unix.Geteuid() && unix.Getgid() == unix.Getegid()
}
