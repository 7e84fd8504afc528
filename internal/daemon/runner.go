// Package daemon provides the guardian runner for pairwatch.
// It manages the lifecycle of the guardian process: recording its pid,
// running the watchdog supervisor and shutting it down gracefully.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/warpdl/pairwatch/pkg/logger"
)

// Sentinel errors for the guardian runner.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running guardian.
	ErrAlreadyRunning = errors.New("guardian is already running")

	// ErrNotRunning is returned when Shutdown() is called on a stopped guardian.
	ErrNotRunning = errors.New("guardian is not running")

	// ErrShutdownTimeout is returned when shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")

	// ErrNoSupervisor is returned by Start when no supervisor was provided.
	ErrNoSupervisor = errors.New("no supervisor configured")
)

// Supervisor is the watchdog side the runner drives.
type Supervisor interface {
	Start(ctx context.Context, argv []string) error
	Stop(ctx context.Context) error
	Done() <-chan struct{}
	Wait() error
}

// PidFile records the guardian pid while it runs.
type PidFile interface {
	Write(pid int) error
	Remove() error
}

// Config holds the configuration for the guardian runner.
type Config struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// A zero value means no timeout.
	ShutdownTimeout time.Duration
}

// Dependencies holds the external dependencies for the guardian runner.
// This enables dependency injection for testing.
type Dependencies struct {
	// Supervisor runs the watchdog protocol. Required.
	Supervisor Supervisor

	// PidFile records the guardian pid. If nil, no pid file is written.
	PidFile PidFile

	// Getpid returns the pid to record. If nil, os.Getpid is used.
	Getpid func() int

	// Logger receives lifecycle messages. If nil, messages are discarded.
	Logger logger.Logger

	// ShutdownFunc is called during shutdown to clean up resources.
	// If nil, no cleanup function is called.
	ShutdownFunc func() error
}

// Runner manages the guardian lifecycle.
type Runner struct {
	config  *Config
	deps    *Dependencies
	running bool
	mu      sync.Mutex
	cancel  context.CancelFunc
}

// New creates a new guardian runner with the given configuration and dependencies.
// If config is nil, default values are used.
func New(config *Config, deps *Dependencies) *Runner {
	return &Runner{
		config: applyConfigDefaults(config),
		deps:   applyDependencyDefaults(deps),
	}
}

// applyConfigDefaults returns a Config with default values applied for nil fields.
func applyConfigDefaults(config *Config) *Config {
	if config == nil {
		return &Config{}
	}
	return config
}

// applyDependencyDefaults returns Dependencies with default values applied.
func applyDependencyDefaults(deps *Dependencies) *Dependencies {
	if deps == nil {
		deps = &Dependencies{}
	}
	if deps.Getpid == nil {
		deps.Getpid = os.Getpid
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	return deps
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config {
	return r.config
}

// Start records the guardian pid, starts the supervisor for argv and blocks
// until the supervisor loop ends or ctx is canceled. On cancellation the
// supervisor is stopped and ctx.Err() is returned.
// Returns ErrAlreadyRunning if the guardian is already started.
func (r *Runner) Start(ctx context.Context, argv []string) error {
	sup := r.deps.Supervisor
	if sup == nil {
		return ErrNoSupervisor
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}

	ctx, r.cancel = context.WithCancel(ctx)

	// Record the pid BEFORE setting running=true so a failed write leaves
	// the runner startable.
	if r.deps.PidFile != nil {
		if err := r.deps.PidFile.Write(r.deps.Getpid()); err != nil {
			r.cancel()
			r.mu.Unlock()
			return fmt.Errorf("write pid file: %w", err)
		}
	}
	r.running = true
	r.mu.Unlock()

	defer r.cleanupOnStop()

	if err := sup.Start(ctx, argv); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}
	r.deps.Logger.Info("guardian %d running", r.deps.Getpid())

	select {
	case <-sup.Done():
		return sup.Wait()
	case <-ctx.Done():
	}

	if err := r.stopSupervisor(sup); err != nil {
		return err
	}
	return ctx.Err()
}

// stopSupervisor stops sup within the shutdown timeout, if any.
func (r *Runner) stopSupervisor(sup Supervisor) error {
	stopCtx := context.Background()
	if r.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(stopCtx, r.config.ShutdownTimeout)
		defer cancel()
	}

	err := sup.Stop(stopCtx)
	if errors.Is(stopCtx.Err(), context.DeadlineExceeded) {
		return ErrShutdownTimeout
	}
	if err != nil {
		return fmt.Errorf("stop supervisor: %w", err)
	}
	return nil
}

// cleanupOnStop performs cleanup when the guardian stops. It also releases
// the run context, which the supervisor may still hold.
func (r *Runner) cleanupOnStop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.running = false
	r.removePidFile()
}

// removePidFile removes the pid file if one is configured.
// Caller must hold the mutex.
func (r *Runner) removePidFile() {
	if r.deps.PidFile == nil {
		return
	}
	if err := r.deps.PidFile.Remove(); err != nil {
		r.deps.Logger.Warning("remove pid file: %v", err)
	}
}

// Shutdown gracefully stops the guardian.
// Returns ErrNotRunning if the guardian is not running.
// Returns ErrShutdownTimeout if the shutdown function exceeds the configured timeout.
func (r *Runner) Shutdown() error {
	if err := r.validateRunning(); err != nil {
		return err
	}

	// Execute shutdown function if configured
	if err := r.executeShutdownFunc(); err != nil {
		return err
	}

	// Perform final cleanup
	r.performShutdown()

	return nil
}

// validateRunning checks if the guardian is running.
// Returns ErrNotRunning if not running.
func (r *Runner) validateRunning() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return ErrNotRunning
	}
	return nil
}

// executeShutdownFunc runs the shutdown function with timeout if configured.
// Returns ErrShutdownTimeout if the function exceeds the timeout.
func (r *Runner) executeShutdownFunc() error {
	if r.deps.ShutdownFunc == nil {
		return nil
	}

	if r.config.ShutdownTimeout > 0 {
		return r.executeWithTimeout(r.deps.ShutdownFunc, r.config.ShutdownTimeout)
	}

	// Shutdown function error is intentionally ignored during cleanup.
	// The shutdown must proceed regardless of cleanup errors.
	_ = r.deps.ShutdownFunc()
	return nil
}

// executeWithTimeout runs a function with a timeout.
// Returns ErrShutdownTimeout if the function exceeds the timeout.
// Returns the function's error if it completes within the timeout.
func (r *Runner) executeWithTimeout(fn func() error, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		r.forceStop()
		return ErrShutdownTimeout
	}
}

// forceStop cancels the run without waiting for the shutdown function.
func (r *Runner) forceStop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
}

// performShutdown cancels the run; Start stops the supervisor and returns.
func (r *Runner) performShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
}

// IsRunning returns true if the guardian is currently running.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
