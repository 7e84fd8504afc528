package watchdog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warpdl/pairwatch/pkg/logger"
)

var errNoProcess = errors.New("no such process")

// bus is an in-memory signal network. Unlike os/signal it knows who sent
// each delivery, and it can silence a process to simulate a hang.
type bus struct {
	mu        sync.Mutex
	endpoints map[int]*endpoint
	muted     map[int]bool
}

func newBus() *bus {
	return &bus{endpoints: make(map[int]*endpoint), muted: make(map[int]bool)}
}

func (b *bus) endpoint(pid int) *endpoint {
	return &endpoint{bus: b, pid: pid}
}

// mute drops every signal pid sends from now on.
func (b *bus) mute(pid int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted[pid] = true
}

func (b *bus) alive(pid int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.endpoints[pid]
	return ok
}

type endpoint struct {
	bus *bus
	pid int
	ch  chan Delivery
}

func (e *endpoint) Listen() (<-chan Delivery, error) {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if e.ch == nil {
		e.ch = make(chan Delivery, 64)
		e.bus.endpoints[e.pid] = e
	}
	return e.ch, nil
}

func (e *endpoint) Send(pid int, sig Signal) error {
	if pid <= 0 {
		return ErrNoCounterpart
	}
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if e.bus.muted[e.pid] {
		return nil
	}
	target, ok := e.bus.endpoints[pid]
	if !ok {
		return errNoProcess
	}
	select {
	case target.ch <- Delivery{Signal: sig, Sender: e.pid}:
	default:
	}
	return nil
}

func (e *endpoint) Close() error {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if cur, ok := e.bus.endpoints[e.pid]; ok && cur == e {
		delete(e.bus.endpoints, e.pid)
		close(e.ch)
	}
	return nil
}

type mapEnv struct {
	mu   sync.Mutex
	vars map[string]string
}

func newMapEnv(vars map[string]string) *mapEnv {
	if vars == nil {
		vars = make(map[string]string)
	}
	return &mapEnv{vars: vars}
}

func (m *mapEnv) Lookup(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vars[key]
	return v, ok
}

func (m *mapEnv) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vars[key] = value
	return nil
}

func (m *mapEnv) Unset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vars, key)
	return nil
}

func (m *mapEnv) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.vars))
	for k, v := range m.vars {
		out[k] = v
	}
	return out
}

// simProc is one simulated process of the pair.
type simProc struct {
	pid int
	sup *Supervisor
	env *mapEnv
}

// harness runs whole pairs inside the test process. Spawning creates a new
// Supervisor and starts it on its own goroutine, as the child's main would.
type harness struct {
	t           *testing.T
	bus         *bus
	primaryCfg  Config
	guardianCfg Config

	mu       sync.Mutex
	nextPID  int
	procs    []*simProc
	startErr []error
}

func testConfig(dir string) Config {
	return Config{
		HeartbeatInterval:    20 * time.Millisecond,
		EscalationInterval:   20 * time.Millisecond,
		ShutdownPollInterval: 10 * time.Millisecond,
		MissThreshold:        5,
		GuardianPath:         "/opt/pairwatch/pairwatchd",
		HandoffEnv:           DefaultHandoffEnv,
		SemaphoreDir:         dir,
		PrimarySemaphore:     DefaultPrimarySemaphore,
		GuardianSemaphore:    DefaultGuardianSemaphore,
		RendezvousTimeout:    2 * time.Second,
		StopTimeout:          time.Second,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig(t.TempDir())
	h := &harness{
		t:           t,
		bus:         newBus(),
		primaryCfg:  cfg,
		guardianCfg: cfg,
		nextPID:     1000,
	}
	t.Cleanup(h.stopAll)
	return h
}

func (h *harness) newProcess(cfg Config, ppid int, vars map[string]string) *simProc {
	h.t.Helper()
	h.mu.Lock()
	pid := h.nextPID
	h.nextPID++
	h.mu.Unlock()

	p := &simProc{pid: pid, env: newMapEnv(vars)}
	sup, err := New(&cfg, &Dependencies{
		Transport: h.bus.endpoint(pid),
		Spawner:   h.spawnerFor(p),
		Env:       p.env,
		ProcessAlive: func(_ context.Context, pid int) (bool, error) {
			return h.bus.alive(pid), nil
		},
		Getpid:  func() int { return pid },
		Getppid: func() int { return ppid },
		Logger:  logger.NewNopLogger(),
		Metrics: NewMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		h.t.Fatalf("New: %v", err)
	}
	p.sup = sup

	h.mu.Lock()
	h.procs = append(h.procs, p)
	h.mu.Unlock()
	return p
}

func (h *harness) spawnerFor(parent *simProc) Spawner {
	return SpawnerFunc(func(argv, env []string) (int, error) {
		if len(argv) == 0 {
			return 0, ErrInvalidArgv
		}
		cfg := h.primaryCfg
		startArgv := argv
		if DetectRole(argv[0], h.guardianCfg.GuardianPath) == Guardian {
			if len(argv) < 2 || argv[1] != "--" {
				return 0, errors.New("guardian argv lacks --")
			}
			cfg = h.guardianCfg
			startArgv = append([]string{argv[0]}, argv[2:]...)
		}

		vars := parent.env.snapshot()
		for _, kv := range env {
			k, v, _ := strings.Cut(kv, "=")
			vars[k] = v
		}
		child := h.newProcess(cfg, parent.pid, vars)
		go func() {
			if err := child.sup.Start(context.Background(), startArgv); err != nil {
				h.mu.Lock()
				h.startErr = append(h.startErr, err)
				h.mu.Unlock()
			}
		}()
		return child.pid, nil
	})
}

// startPrimary starts a primary in the foreground, which spawns its guardian.
func (h *harness) startPrimary() *simProc {
	h.t.Helper()
	p := h.newProcess(h.primaryCfg, 1, nil)
	if err := p.sup.Start(context.Background(), []string{"/usr/bin/app", "--serve"}); err != nil {
		h.t.Fatalf("primary Start: %v", err)
	}
	return p
}

func (h *harness) process(pid int) *simProc {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.procs {
		if p.pid == pid {
			return p
		}
	}
	return nil
}

func (h *harness) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.procs)
}

// stopAll stops every process, newest first.
func (h *harness) stopAll() {
	h.mu.Lock()
	procs := append([]*simProc(nil), h.procs...)
	h.mu.Unlock()

	for i := len(procs) - 1; i >= 0; i-- {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = procs[i].sup.Stop(ctx)
		cancel()
	}
}

func isStarted(s *Supervisor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...interface{}) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf(format, args...)
}

func waitDone(t *testing.T, s *Supervisor, timeout time.Duration) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(timeout):
		t.Fatalf("%s loop did not end within %v", s.Role(), timeout)
	}
}
