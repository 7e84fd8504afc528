package daemon

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/warpdl/pairwatch/internal/pidfile"
)

// fakeSupervisor records how the runner drives it.
type fakeSupervisor struct {
	startErr  error
	stopErr   error
	waitErr   error
	stopDelay time.Duration

	mu        sync.Mutex
	argv      []string
	ctx       context.Context
	stopCalls int
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{done: make(chan struct{})}
}

func (f *fakeSupervisor) Start(ctx context.Context, argv []string) error {
	f.mu.Lock()
	f.argv = argv
	f.ctx = ctx
	f.mu.Unlock()
	return f.startErr
}

func (f *fakeSupervisor) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	if f.stopDelay > 0 {
		select {
		case <-time.After(f.stopDelay):
		case <-ctx.Done():
			f.finish()
			return ctx.Err()
		}
	}
	f.finish()
	return f.stopErr
}

func (f *fakeSupervisor) Done() <-chan struct{} { return f.done }

func (f *fakeSupervisor) Wait() error {
	<-f.done
	return f.waitErr
}

// finish ends the loop as a remote shutdown would.
func (f *fakeSupervisor) finish() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *fakeSupervisor) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

func startAsync(ctx context.Context, r *Runner, argv []string) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Start(ctx, argv)
	}()
	return errCh
}

func waitRunning(t *testing.T, r *Runner, want bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if r.IsRunning() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("IsRunning() never became %v", want)
}

func awaitStart(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return")
		return nil
	}
}

// TestNewRunner_NilConfig tests that New() handles nil config and dependencies.
func TestNewRunner_NilConfig(t *testing.T) {
	runner := New(nil, nil)
	if runner == nil {
		t.Fatal("New() with nil config returned nil runner")
	}
	if runner.Config().ShutdownTimeout != 0 {
		t.Errorf("ShutdownTimeout = %v, want 0", runner.Config().ShutdownTimeout)
	}
	if err := runner.Start(context.Background(), []string{"pairwatchd"}); !errors.Is(err, ErrNoSupervisor) {
		t.Errorf("Start() error = %v, want ErrNoSupervisor", err)
	}
}

// TestRunner_Start_WritesAndRemovesPidFile tests the pid file lifecycle.
func TestRunner_Start_WritesAndRemovesPidFile(t *testing.T) {
	memFs := afero.NewMemMapFs()
	pf := pidfile.New(memFs, "/state")
	sup := newFakeSupervisor()

	runner := New(nil, &Dependencies{
		Supervisor: sup,
		PidFile:    pf,
		Getpid:     func() int { return 4321 },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startAsync(ctx, runner, []string{"pairwatchd", "/usr/bin/app"})
	waitRunning(t, runner, true)

	pid, err := pf.Read()
	if err != nil {
		t.Fatalf("Read pid file: %v", err)
	}
	if pid != 4321 {
		t.Errorf("pid file = %d, want 4321", pid)
	}

	sup.finish()
	if err := awaitStart(t, errCh); err != nil {
		t.Errorf("Start() = %v, want nil after the loop ended", err)
	}
	if _, err := pf.Read(); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("pid file not removed: %v", err)
	}
	if runner.IsRunning() {
		t.Error("runner still running after the loop ended")
	}
}

// TestRunner_Start_PassesArgv tests that argv reaches the supervisor.
func TestRunner_Start_PassesArgv(t *testing.T) {
	sup := newFakeSupervisor()
	runner := New(nil, &Dependencies{Supervisor: sup})

	errCh := startAsync(context.Background(), runner, []string{"pairwatchd", "/usr/bin/app", "-v"})
	waitRunning(t, runner, true)
	sup.finish()
	awaitStart(t, errCh)

	sup.mu.Lock()
	defer sup.mu.Unlock()
	if len(sup.argv) != 3 || sup.argv[1] != "/usr/bin/app" {
		t.Errorf("supervisor argv = %q", sup.argv)
	}
}

// TestRunner_Start_ReturnsErrorIfAlreadyRunning tests that Start() returns an error
// if the runner is already started.
func TestRunner_Start_ReturnsErrorIfAlreadyRunning(t *testing.T) {
	runner := New(nil, &Dependencies{Supervisor: newFakeSupervisor()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := startAsync(ctx, runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)

	err := runner.Start(ctx, []string{"pairwatchd", "app"})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Start() error = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	awaitStart(t, errCh)
}

// TestRunner_Start_SupervisorError tests that a failed supervisor start is
// reported and leaves no pid file behind.
func TestRunner_Start_SupervisorError(t *testing.T) {
	memFs := afero.NewMemMapFs()
	pf := pidfile.New(memFs, "/state")
	sup := newFakeSupervisor()
	sup.startErr = errors.New("rendezvous timed out")

	runner := New(nil, &Dependencies{Supervisor: sup, PidFile: pf})

	err := runner.Start(context.Background(), []string{"pairwatchd", "app"})
	if !errors.Is(err, sup.startErr) {
		t.Fatalf("Start() error = %v, want %v", err, sup.startErr)
	}
	if ok, _ := afero.Exists(memFs, pf.Path()); ok {
		t.Error("pid file left behind")
	}
	if runner.IsRunning() {
		t.Error("runner running after failed start")
	}
}

// TestRunner_Start_PidFileError tests that a pid file failure aborts Start.
func TestRunner_Start_PidFileError(t *testing.T) {
	pf := pidfile.New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/state")
	runner := New(nil, &Dependencies{Supervisor: newFakeSupervisor(), PidFile: pf})

	if err := runner.Start(context.Background(), []string{"pairwatchd", "app"}); err == nil {
		t.Fatal("Start() should fail when the pid file cannot be written")
	}
	if runner.IsRunning() {
		t.Error("runner running after failed start")
	}
}

// TestRunner_Context_CancellationStopsSupervisor tests context cancellation
// stops the supervisor.
func TestRunner_Context_CancellationStopsSupervisor(t *testing.T) {
	sup := newFakeSupervisor()
	runner := New(nil, &Dependencies{Supervisor: sup})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := startAsync(ctx, runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)

	cancel()

	if err := awaitStart(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}
	if sup.stops() != 1 {
		t.Errorf("supervisor stopped %d times, want 1", sup.stops())
	}
	if runner.IsRunning() {
		t.Error("Runner should not be running after context cancellation")
	}
}

// TestRunner_Context_StopTimeout tests that a supervisor slower than
// ShutdownTimeout yields ErrShutdownTimeout.
func TestRunner_Context_StopTimeout(t *testing.T) {
	sup := newFakeSupervisor()
	sup.stopDelay = time.Second
	runner := New(&Config{ShutdownTimeout: 50 * time.Millisecond}, &Dependencies{Supervisor: sup})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := startAsync(ctx, runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)
	cancel()

	if err := awaitStart(t, errCh); !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("Start() error = %v, want ErrShutdownTimeout", err)
	}
}

// TestRunner_Context_StopError tests that a supervisor stop error is returned.
func TestRunner_Context_StopError(t *testing.T) {
	sup := newFakeSupervisor()
	sup.stopErr = errors.New("counterpart did not acknowledge stop")
	runner := New(nil, &Dependencies{Supervisor: sup})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := startAsync(ctx, runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)
	cancel()

	if err := awaitStart(t, errCh); !errors.Is(err, sup.stopErr) {
		t.Errorf("Start() error = %v, want %v", err, sup.stopErr)
	}
}

// TestRunner_Start_ReturnsWaitError tests that the loop's error is returned.
func TestRunner_Start_ReturnsWaitError(t *testing.T) {
	sup := newFakeSupervisor()
	sup.waitErr = errors.New("task failed")
	runner := New(nil, &Dependencies{Supervisor: sup})

	errCh := startAsync(context.Background(), runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)
	sup.finish()

	if err := awaitStart(t, errCh); !errors.Is(err, sup.waitErr) {
		t.Errorf("Start() error = %v, want %v", err, sup.waitErr)
	}
}

func TestRunner_Start_ReleasesRunContext(t *testing.T) {
	sup := newFakeSupervisor()
	runner := New(nil, &Dependencies{Supervisor: sup})

	errCh := startAsync(context.Background(), runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)
	sup.finish()
	if err := awaitStart(t, errCh); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sup.mu.Lock()
	ctx := sup.ctx
	sup.mu.Unlock()
	select {
	case <-ctx.Done():
	default:
		t.Error("context passed to the supervisor is still live after Start returned")
	}
}

// TestRunner_Shutdown tests that Shutdown() gracefully stops the runner.
func TestRunner_Shutdown(t *testing.T) {
	var shutdownCalled atomic.Bool
	sup := newFakeSupervisor()
	runner := New(nil, &Dependencies{
		Supervisor: sup,
		ShutdownFunc: func() error {
			shutdownCalled.Store(true)
			return nil
		},
	})

	errCh := startAsync(context.Background(), runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)

	if err := runner.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !shutdownCalled.Load() {
		t.Error("Shutdown() did not call shutdown function")
	}

	awaitStart(t, errCh)
	if sup.stops() != 1 {
		t.Errorf("supervisor stopped %d times, want 1", sup.stops())
	}
	waitRunning(t, runner, false)
}

// TestRunner_Shutdown_WithTimeout tests that Shutdown() respects timeout.
func TestRunner_Shutdown_WithTimeout(t *testing.T) {
	runner := New(&Config{ShutdownTimeout: 100 * time.Millisecond}, &Dependencies{
		Supervisor: newFakeSupervisor(),
		ShutdownFunc: func() error {
			time.Sleep(500 * time.Millisecond)
			return nil
		},
	})

	errCh := startAsync(context.Background(), runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)

	if err := runner.Shutdown(); !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("Shutdown() error = %v, want ErrShutdownTimeout", err)
	}
	// The run is canceled even though the shutdown function overran.
	awaitStart(t, errCh)
}

// TestRunner_Shutdown_NotRunning tests that Shutdown() handles not-running state.
func TestRunner_Shutdown_NotRunning(t *testing.T) {
	runner := New(nil, nil)

	if err := runner.Shutdown(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Shutdown() error = %v, want ErrNotRunning", err)
	}
}

// TestRunner_ExecuteWithTimeout_ReturnsError tests that executeWithTimeout returns
// errors from the function when it completes within the timeout.
func TestRunner_ExecuteWithTimeout_ReturnsError(t *testing.T) {
	expectedErr := errors.New("shutdown error")
	runner := New(&Config{ShutdownTimeout: time.Second}, &Dependencies{
		Supervisor: newFakeSupervisor(),
		ShutdownFunc: func() error {
			return expectedErr
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startAsync(ctx, runner, []string{"pairwatchd", "app"})
	waitRunning(t, runner, true)

	if err := runner.Shutdown(); !errors.Is(err, expectedErr) {
		t.Errorf("Shutdown() error = %v, want %v", err, expectedErr)
	}

	cancel()
	awaitStart(t, errCh)
}
