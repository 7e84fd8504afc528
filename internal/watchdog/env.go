package watchdog

import (
	"context"
	"os"

	psprocess "github.com/shirou/gopsutil/v3/process"
)

// Env is the process environment used for the pid handoff.
type Env interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	Unset(key string) error
}

// OSEnv is the real process environment.
type OSEnv struct{}

func (OSEnv) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (OSEnv) Set(key, value string) error      { return os.Setenv(key, value) }
func (OSEnv) Unset(key string) error           { return os.Unsetenv(key) }

// ProcessAlive reports whether a process with the given pid exists.
func ProcessAlive(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	return psprocess.PidExistsWithContext(ctx, int32(pid))
}
