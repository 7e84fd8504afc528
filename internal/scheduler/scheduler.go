package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warpdl/pairwatch/internal/uid"
)

const maxSleepCap = 60 * time.Second

// Sentinel errors for the scheduler.
var (
	// ErrAlreadyRunning is returned when Run is called while another Run is active.
	ErrAlreadyRunning = errors.New("scheduler is already running")

	// ErrRunning is returned when Destroy is called before Run has returned.
	ErrRunning = errors.New("scheduler is running")

	// ErrDestroyed is returned by operations on a destroyed scheduler.
	ErrDestroyed = errors.New("scheduler has been destroyed")

	// ErrInvalidTask is returned by AddTask for a nil job or negative interval.
	ErrInvalidTask = errors.New("invalid task")

	// ErrBadIdentity is returned by AddTask when no task identity could be generated.
	ErrBadIdentity = errors.New("could not generate task identity")

	// ErrTaskFailed is wrapped by every TaskError.
	ErrTaskFailed = errors.New("task failed")
)

// TaskError reports a task that returned a fatal result.
type TaskError struct {
	ID     uid.UID
	Result Result
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s returned fatal result %d", e.ID, int(e.Result))
}

func (e *TaskError) Unwrap() error { return ErrTaskFailed }

// Config holds the configuration for a Scheduler.
type Config struct {
	// StopPolicy decides whether a Stop result ends Run or only its task.
	StopPolicy StopPolicy

	// MaxSleep caps a single sleep between checks of the queue.
	// Zero means 60 seconds.
	MaxSleep time.Duration

	// NewID generates task identities. Nil means uid.Generate.
	NewID func() uid.UID

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// Scheduler runs periodic tasks on the goroutine that calls Run.
type Scheduler struct {
	cfg Config

	mu        sync.Mutex
	queue     *taskQueue
	running   bool
	destroyed bool

	stopped atomic.Bool
	wake    chan struct{}
}

// New creates an idle Scheduler. A nil config uses the defaults.
func New(config *Config) *Scheduler {
	return &Scheduler{
		cfg:   applyConfigDefaults(config),
		queue: newTaskQueue(),
		wake:  make(chan struct{}, 1),
	}
}

// applyConfigDefaults returns a copy of config with zero fields filled in.
func applyConfigDefaults(config *Config) Config {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	if cfg.MaxSleep <= 0 {
		cfg.MaxSleep = maxSleepCap
	}
	if cfg.NewID == nil {
		cfg.NewID = uid.Generate
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// AddTask schedules job to run every interval, first one interval from now.
// On failure it returns uid.Bad together with the error.
func (s *Scheduler) AddTask(interval time.Duration, job Job) (uid.UID, error) {
	if job == nil || interval < 0 {
		return uid.Bad, ErrInvalidTask
	}
	id := s.cfg.NewID()
	if id.IsBad() {
		return uid.Bad, ErrBadIdentity
	}
	t := newTask(id, job, interval, s.cfg.Now())

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return uid.Bad, ErrDestroyed
	}
	s.queue.Enqueue(t)
	s.mu.Unlock()

	s.notify()
	return id, nil
}

// RemoveTask destroys the queued task with the given id. It returns false if
// no such task is queued, which includes the task that is currently executing.
func (s *Scheduler) RemoveTask(id uid.UID) bool {
	s.mu.Lock()
	t, ok := s.queue.Erase(func(t *Task) bool { return t.id.Equal(id) })
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.destroy()
	s.notify()
	return true
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Count()
}

// IsRunning reports whether Run is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop asks Run to return. A task that is executing finishes first.
// Stop is permanent: a stopped scheduler never runs tasks again.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	s.notify()
}

// Run executes due tasks until Stop is called, a task returns Stop under the
// StopScheduler policy, a task returns a fatal result, or ctx is done.
// A fatal result is reported as a *TaskError.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for !s.stopped.Load() {
		t, wait := s.next()
		if t == nil {
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		if err := s.settle(t, t.run()); err != nil {
			return err
		}
	}
	return nil
}

// next pops the earliest task if it is due. Otherwise it returns how long to
// wait, or a negative duration when the queue is empty.
func (s *Scheduler) next() (*Task, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.queue.Peek()
	if !ok {
		return nil, -1
	}
	if d := t.nextRun.Sub(s.cfg.Now()); d > 0 {
		return nil, min(d, s.cfg.MaxSleep)
	}
	s.queue.Dequeue()
	return t, 0
}

// sleep blocks for d, or until woken when d is negative.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	var timerCh <-chan time.Time
	if d >= 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timerCh = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.wake:
	case <-timerCh:
	}
	return nil
}

// settle applies the result of a task execution.
func (s *Scheduler) settle(t *Task, res Result) error {
	switch res {
	case Repeat:
		t.updateNextRun(s.cfg.Now())
		s.mu.Lock()
		s.queue.Enqueue(t)
		s.mu.Unlock()
		return nil
	case Stop:
		t.destroy()
		if s.cfg.StopPolicy == StopScheduler {
			s.Stop()
		}
		return nil
	default:
		t.destroy()
		s.Stop()
		return &TaskError{ID: t.id, Result: res}
	}
}

// Destroy destroys every queued task, running their cleanups. It returns
// ErrRunning if Run has not returned yet. Calling Destroy again is a no-op.
func (s *Scheduler) Destroy() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	drained := s.queue.Clear()
	s.mu.Unlock()

	for _, t := range drained {
		t.destroy()
	}
	return nil
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
