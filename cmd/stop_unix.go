//go:build !windows

package cmd

import "golang.org/x/sys/unix"

// terminate sends SIGTERM to pid. Replaced by tests.
var terminate = func(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}
