//go:build windows

package cmd

import (
	"errors"
	"fmt"
)

var errStopUnsupported = errors.New("stopping the guardian is not supported on this platform")

var terminate = func(pid int) error {
	return fmt.Errorf("pid %d: %w", pid, errStopUnsupported)
}
