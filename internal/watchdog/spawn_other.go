//go:build !unix

package watchdog

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
