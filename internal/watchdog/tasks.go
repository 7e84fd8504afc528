package watchdog

import (
	"strconv"

	"github.com/warpdl/pairwatch/internal/scheduler"
)

// heartbeat counts one more unanswered ping and sends the next one. The
// counterpart's ping resets the count from the signal inbox.
func (s *Supervisor) heartbeat() scheduler.Result {
	n := s.misses.Add(1)
	s.deps.Metrics.misses.Set(float64(n))

	peer := s.Counterpart()
	if err := s.deps.Transport.Send(peer, Heartbeat); err != nil {
		// Repeats of the same failure are left to the escalation log.
		if msg := err.Error(); msg != s.lastSendErr {
			s.lastSendErr = msg
			s.log.Warning("watchdog: heartbeat to %s %d: %v", s.role.Counterpart(), peer, err)
		}
		return scheduler.Repeat
	}
	s.lastSendErr = ""
	s.deps.Metrics.heartbeats.Inc()
	return scheduler.Repeat
}

// escalate respawns the counterpart once MissThreshold heartbeats went
// unanswered.
func (s *Supervisor) escalate() scheduler.Result {
	if s.stopCtx.Err() != nil || s.shutdown.Load() {
		return scheduler.Repeat
	}
	if int(s.misses.Load()) < s.cfg.MissThreshold {
		return scheduler.Repeat
	}
	s.misses.Store(0)

	old := s.Counterpart()
	s.log.Warning("watchdog: %s %d missed %d heartbeats, respawning", s.role.Counterpart(), old, s.cfg.MissThreshold)

	pid, err := s.spawnCounterpart()
	if err != nil {
		s.deps.Metrics.respawnFailures.Inc()
		s.log.Error("watchdog: respawn %s: %v", s.role.Counterpart(), err)
		return scheduler.Repeat
	}
	s.counterpart.Store(int64(pid))
	s.lastSendErr = ""

	if err := s.rendezvous(s.stopCtx); err != nil {
		s.deps.Metrics.respawnFailures.Inc()
		s.log.Error("watchdog: rendezvous with respawned %s %d: %v", s.role.Counterpart(), pid, err)
		return scheduler.Repeat
	}
	s.misses.Store(0)
	s.deps.Metrics.misses.Set(0)
	s.deps.Metrics.respawns.Inc()
	s.log.Info("watchdog: respawned %s as %d", s.role.Counterpart(), pid)
	return scheduler.Repeat
}

func (s *Supervisor) spawnCounterpart() (int, error) {
	if s.role == Guardian {
		env := []string{s.cfg.HandoffEnv + "=" + strconv.Itoa(s.pid)}
		return s.deps.Spawner.Spawn(s.primaryArgv, env)
	}
	return s.deps.Spawner.Spawn(s.guardianArgv(), nil)
}

// pollShutdown acknowledges a termination request from the counterpart and
// ends the scheduler loop.
func (s *Supervisor) pollShutdown() scheduler.Result {
	if !s.shutdown.Load() {
		return scheduler.Repeat
	}
	s.log.Info("watchdog: %s %d requested shutdown", s.role.Counterpart(), s.Counterpart())
	if err := s.mine.Post(); err != nil {
		s.log.Error("watchdog: acknowledge shutdown: %v", err)
	}
	s.sched.Stop()
	if err := s.deps.Env.Unset(s.cfg.HandoffEnv); err != nil {
		s.log.Warning("watchdog: unset %s: %v", s.cfg.HandoffEnv, err)
	}
	s.deps.Metrics.shutdowns.Inc()
	return scheduler.Stop
}
