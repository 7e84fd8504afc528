package watchdog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ErrInvalidArgv is returned for an empty argument vector, or a guardian
// argument vector that names no primary.
var ErrInvalidArgv = errors.New("invalid argument vector")

// Spawner starts a process and returns its pid.
type Spawner interface {
	// Spawn starts argv with the current environment plus env ("KEY=value").
	Spawn(argv, env []string) (int, error)
}

// SpawnerFunc adapts a function to the Spawner interface.
type SpawnerFunc func(argv, env []string) (int, error)

// Spawn calls f.
func (f SpawnerFunc) Spawn(argv, env []string) (int, error) { return f(argv, env) }

// ExecSpawner starts processes with os/exec in their own process group and
// reaps them in the background.
type ExecSpawner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSpawner returns a spawner whose children share this process's
// stdout and stderr.
func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Spawn implements Spawner.
func (e *ExecSpawner) Spawn(argv, env []string) (int, error) {
	if len(argv) == 0 || argv[0] == "" {
		return 0, ErrInvalidArgv
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	cmd.SysProcAttr = sysProcAttr()
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn %s: %w", argv[0], err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return cmd.Process.Pid, nil
}
