// Package watchdog keeps a pair of processes alive. The primary is the
// supervised application and the guardian is a monitor it spawns. Each side
// sends the other periodic heartbeats and respawns it once too many go
// unanswered. Start, respawn and Stop synchronise the pair through two named
// semaphores.
//
// The signal transport cannot always tell who sent a delivery. Deliveries
// without a sender are accepted as coming from the counterpart, so on such
// platforms any process allowed to signal this one can reset the miss count
// or request a shutdown.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warpdl/pairwatch/internal/namedsem"
	"github.com/warpdl/pairwatch/internal/scheduler"
	"github.com/warpdl/pairwatch/pkg/logger"
)

var (
	// ErrAlreadyStarted is returned when Start is called a second time.
	ErrAlreadyStarted = errors.New("supervisor already started")

	// ErrNotStarted is returned by Wait before Start has succeeded.
	ErrNotStarted = errors.New("supervisor not started")

	// ErrStopTimeout is returned by Stop when the counterpart did not
	// acknowledge termination within StopTimeout. Teardown still completes.
	ErrStopTimeout = errors.New("counterpart did not acknowledge stop")
)

// Semaphore is the rendezvous primitive shared by the pair.
type Semaphore interface {
	Post() error
	Wait(ctx context.Context) error
	Close() error
}

// Dependencies holds the supervisor's external collaborators. Nil fields
// use the real operating system.
type Dependencies struct {
	Transport       Transport
	Spawner         Spawner
	OpenSemaphore   func(dir, name string) (Semaphore, error)
	UnlinkSemaphore func(dir, name string) error
	Env             Env
	ProcessAlive    func(ctx context.Context, pid int) (bool, error)
	Getpid          func() int
	Getppid         func() int
	Logger          logger.Logger
	Metrics         *Metrics
}

func openNamedSemaphore(dir, name string) (Semaphore, error) {
	return namedsem.Open(dir, name)
}

func applyDependencyDefaults(deps *Dependencies) Dependencies {
	var d Dependencies
	if deps != nil {
		d = *deps
	}
	if d.Transport == nil {
		d.Transport = NewSignalTransport()
	}
	if d.Spawner == nil {
		d.Spawner = NewExecSpawner()
	}
	if d.OpenSemaphore == nil {
		d.OpenSemaphore = openNamedSemaphore
	}
	if d.UnlinkSemaphore == nil {
		d.UnlinkSemaphore = namedsem.Unlink
	}
	if d.Env == nil {
		d.Env = OSEnv{}
	}
	if d.ProcessAlive == nil {
		d.ProcessAlive = ProcessAlive
	}
	if d.Getpid == nil {
		d.Getpid = os.Getpid
	}
	if d.Getppid == nil {
		d.Getppid = os.Getppid
	}
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	return d
}

// Supervisor runs one side of the pair.
type Supervisor struct {
	cfg  Config
	deps Dependencies
	log  logger.Logger

	role        Role
	pid         int
	primaryArgv []string
	sched       *scheduler.Scheduler
	mine        Semaphore
	theirs      Semaphore

	// Written from the signal inbox.
	counterpart atomic.Int64
	misses      atomic.Int32
	shutdown    atomic.Bool

	// stopCtx is cancelled when Stop begins and aborts a respawn rendezvous.
	stopCtx    context.Context
	stopCancel context.CancelFunc

	// Only touched by the scheduler goroutine.
	lastSendErr string

	mu      sync.Mutex
	begun   bool
	started bool
	stopped bool
	runErr  error
	done    chan struct{}
	release sync.Once
}

// New validates config and returns an idle supervisor. A nil config uses
// DefaultConfig; nil deps use the operating system.
func New(config *Config, deps *Dependencies) (*Supervisor, error) {
	cfg := applyConfigDefaults(config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := applyDependencyDefaults(deps)
	stopCtx, stopCancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:        cfg,
		deps:       d,
		log:        d.Logger,
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
		done:       make(chan struct{}),
	}, nil
}

// Config returns the effective configuration.
func (s *Supervisor) Config() Config { return s.cfg }

// Role returns the side this supervisor plays. It is only meaningful after Start.
func (s *Supervisor) Role() Role { return s.role }

// Counterpart returns the pid of the process on the other side.
func (s *Supervisor) Counterpart() int { return int(s.counterpart.Load()) }

// Start brings up the protocol for the process invoked as argv. The
// primary passes its own argv; the guardian passes its program path
// followed by the primary's argv. Start returns once both sides have met
// at the start rendezvous and the scheduler is running. Resources acquired
// before a failure are not released.
func (s *Supervisor) Start(ctx context.Context, argv []string) error {
	s.mu.Lock()
	if s.begun {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.begun = true
	s.mu.Unlock()

	if len(argv) == 0 || argv[0] == "" {
		return ErrInvalidArgv
	}
	s.role = DetectRole(argv[0], s.cfg.GuardianPath)
	s.primaryArgv = append([]string(nil), argv...)
	if s.role == Guardian {
		s.primaryArgv = s.primaryArgv[1:]
		if len(s.primaryArgv) == 0 {
			return fmt.Errorf("%w: guardian started without a primary command", ErrInvalidArgv)
		}
	}
	s.pid = s.deps.Getpid()

	inbox, err := s.deps.Transport.Listen()
	if err != nil {
		return fmt.Errorf("listen for signals: %w", err)
	}
	go s.handleSignals(inbox)

	if err := s.openSemaphores(); err != nil {
		return err
	}

	s.sched = scheduler.New(&scheduler.Config{StopPolicy: scheduler.StopScheduler})
	if err := s.addTasks(); err != nil {
		return err
	}

	if err := s.discoverCounterpart(ctx); err != nil {
		return err
	}

	if err := s.rendezvous(ctx); err != nil {
		return fmt.Errorf("start rendezvous with %s %d: %w", s.role.Counterpart(), s.Counterpart(), err)
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.log.Info("watchdog: %s %d paired with %s %d", s.role, s.pid, s.role.Counterpart(), s.Counterpart())
	go s.loop()
	return nil
}

func (s *Supervisor) openSemaphores() error {
	primary, err := s.deps.OpenSemaphore(s.cfg.SemaphoreDir, s.cfg.PrimarySemaphore)
	if err != nil {
		return fmt.Errorf("open primary semaphore: %w", err)
	}
	guardian, err := s.deps.OpenSemaphore(s.cfg.SemaphoreDir, s.cfg.GuardianSemaphore)
	if err != nil {
		return fmt.Errorf("open guardian semaphore: %w", err)
	}
	if s.role == Guardian {
		s.mine, s.theirs = guardian, primary
	} else {
		s.mine, s.theirs = primary, guardian
	}
	return nil
}

func (s *Supervisor) addTasks() error {
	if _, err := s.sched.AddTask(s.cfg.HeartbeatInterval, scheduler.JobFunc(s.heartbeat)); err != nil {
		return fmt.Errorf("add heartbeat task: %w", err)
	}
	if _, err := s.sched.AddTask(s.cfg.EscalationInterval, scheduler.JobFunc(s.escalate)); err != nil {
		return fmt.Errorf("add escalation task: %w", err)
	}
	if _, err := s.sched.AddTask(s.cfg.ShutdownPollInterval, scheduler.JobFunc(s.pollShutdown)); err != nil {
		return fmt.Errorf("add shutdown task: %w", err)
	}
	return nil
}

func (s *Supervisor) discoverCounterpart(ctx context.Context) error {
	if s.role == Guardian {
		s.counterpart.Store(int64(s.deps.Getppid()))
		if err := s.deps.Env.Set(s.cfg.HandoffEnv, strconv.Itoa(s.pid)); err != nil {
			return fmt.Errorf("export %s: %w", s.cfg.HandoffEnv, err)
		}
		return nil
	}

	if pid, ok := s.handoffPID(); ok {
		alive, err := s.deps.ProcessAlive(ctx, pid)
		if err != nil {
			s.log.Warning("watchdog: check guardian %d: %v", pid, err)
		}
		if alive {
			s.counterpart.Store(int64(pid))
			return nil
		}
	}

	pid, err := s.deps.Spawner.Spawn(s.guardianArgv(), nil)
	if err != nil {
		return fmt.Errorf("spawn guardian: %w", err)
	}
	s.counterpart.Store(int64(pid))
	return nil
}

func (s *Supervisor) handoffPID() (int, bool) {
	v, ok := s.deps.Env.Lookup(s.cfg.HandoffEnv)
	if !ok || v == "" {
		return 0, false
	}
	pid, err := strconv.Atoi(v)
	if err != nil || pid <= 0 || pid == s.pid {
		return 0, false
	}
	return pid, true
}

func (s *Supervisor) guardianArgv() []string {
	argv := make([]string, 0, len(s.primaryArgv)+2)
	argv = append(argv, s.cfg.GuardianPath, "--")
	return append(argv, s.primaryArgv...)
}

// rendezvous posts our semaphore and waits for the counterpart's.
func (s *Supervisor) rendezvous(ctx context.Context) error {
	if err := s.mine.Post(); err != nil {
		return err
	}
	return waitBounded(ctx, s.theirs, s.cfg.RendezvousTimeout)
}

func waitBounded(ctx context.Context, sem Semaphore, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return sem.Wait(ctx)
}

func (s *Supervisor) handleSignals(inbox <-chan Delivery) {
	for d := range inbox {
		s.handle(d)
	}
}

// handle applies one delivery. It only touches atomics.
func (s *Supervisor) handle(d Delivery) {
	if d.Sender != SenderUnknown && int64(d.Sender) != s.counterpart.Load() {
		s.deps.Metrics.dropped.Inc()
		return
	}
	switch d.Signal {
	case Heartbeat:
		s.misses.Store(0)
		s.deps.Metrics.misses.Set(0)
	case Terminate:
		s.shutdown.Store(true)
	}
}

func (s *Supervisor) loop() {
	err := s.sched.Run(context.Background())
	if derr := s.sched.Destroy(); derr != nil {
		s.log.Error("watchdog: destroy scheduler: %v", derr)
	}

	s.mu.Lock()
	s.runErr = err
	remote := !s.stopped
	s.stopped = true
	s.mu.Unlock()

	if remote {
		s.log.Info("watchdog: %s %d shut down by %s", s.role, s.pid, s.role.Counterpart())
		s.closeHandles()
	}
	close(s.done)
}

// Stop asks the counterpart to shut down, waits for its acknowledgement,
// stops the scheduler and removes both semaphores. It is a no-op when Start
// did not complete or the supervisor already stopped. If ctx ends before the
// scheduler loop has exited, Stop returns ctx's error and the teardown
// finishes in the background once the loop ends.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.stopCancel()

	var stopErr error
	peer := s.Counterpart()
	if err := s.deps.Transport.Send(peer, Terminate); err != nil {
		s.log.Warning("watchdog: send terminate to %s %d: %v", s.role.Counterpart(), peer, err)
	}
	if err := waitBounded(ctx, s.theirs, s.cfg.StopTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			stopErr = ErrStopTimeout
		} else {
			stopErr = fmt.Errorf("wait for %s: %w", s.role.Counterpart(), err)
		}
		s.log.Warning("watchdog: %v", stopErr)
	}

	s.sched.Stop()
	select {
	case <-s.done:
	case <-ctx.Done():
		go func() {
			<-s.done
			s.teardown()
		}()
		if stopErr == nil {
			stopErr = fmt.Errorf("wait for scheduler: %w", ctx.Err())
		}
		s.log.Warning("watchdog: %s %d stop interrupted: %v", s.role, s.pid, ctx.Err())
		return stopErr
	}

	s.teardown()
	return stopErr
}

func (s *Supervisor) teardown() {
	s.closeHandles()
	for _, name := range []string{s.cfg.PrimarySemaphore, s.cfg.GuardianSemaphore} {
		if err := s.deps.UnlinkSemaphore(s.cfg.SemaphoreDir, name); err != nil {
			s.log.Warning("watchdog: %v", err)
		}
	}
	s.log.Info("watchdog: %s %d stopped", s.role, s.pid)
}

func (s *Supervisor) closeHandles() {
	s.release.Do(func() {
		_ = s.deps.Transport.Close()
		for _, sem := range []Semaphore{s.mine, s.theirs} {
			if err := sem.Close(); err != nil {
				s.log.Warning("watchdog: close semaphore: %v", err)
			}
		}
	})
}

// Done is closed when the scheduler loop has ended.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Wait blocks until the scheduler loop ends and returns its error.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}
