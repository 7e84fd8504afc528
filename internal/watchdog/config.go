package watchdog

import (
	"errors"
	"fmt"
	"time"

	"github.com/warpdl/pairwatch/internal/namedsem"
)

// Default protocol settings.
const (
	DefaultHeartbeatInterval    = time.Second
	DefaultEscalationInterval   = time.Second
	DefaultShutdownPollInterval = 2 * time.Second
	DefaultMissThreshold        = 5
	DefaultGuardianPath         = "pairwatchd"
	DefaultHandoffEnv           = "PAIRWATCH_GUARDIAN_PID"
	DefaultPrimarySemaphore     = "pairwatch-primary"
	DefaultGuardianSemaphore    = "pairwatch-guardian"
	DefaultRendezvousTimeout    = 30 * time.Second
	DefaultStopTimeout          = 10 * time.Second
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid watchdog config")

// Config holds the protocol settings shared by both sides of a pair.
type Config struct {
	// HeartbeatInterval is how often a liveness signal is sent.
	HeartbeatInterval time.Duration

	// EscalationInterval is how often the miss count is checked.
	EscalationInterval time.Duration

	// ShutdownPollInterval is how often the shutdown flag is checked.
	ShutdownPollInterval time.Duration

	// MissThreshold is the number of unanswered heartbeats after which
	// the counterpart is respawned.
	MissThreshold int

	// GuardianPath is the program spawned as the guardian. A process whose
	// argv[0] matches it runs in the guardian role.
	GuardianPath string

	// HandoffEnv names the environment variable carrying the guardian pid.
	HandoffEnv string

	// SemaphoreDir is where the named semaphores live.
	SemaphoreDir string

	PrimarySemaphore  string
	GuardianSemaphore string

	// RendezvousTimeout bounds the semaphore wait at start and respawn.
	// Zero waits forever.
	RendezvousTimeout time.Duration

	// StopTimeout bounds the semaphore wait in Stop. Zero waits forever.
	StopTimeout time.Duration
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    DefaultHeartbeatInterval,
		EscalationInterval:   DefaultEscalationInterval,
		ShutdownPollInterval: DefaultShutdownPollInterval,
		MissThreshold:        DefaultMissThreshold,
		GuardianPath:         DefaultGuardianPath,
		HandoffEnv:           DefaultHandoffEnv,
		SemaphoreDir:         namedsem.DefaultDir(),
		PrimarySemaphore:     DefaultPrimarySemaphore,
		GuardianSemaphore:    DefaultGuardianSemaphore,
		RendezvousTimeout:    DefaultRendezvousTimeout,
		StopTimeout:          DefaultStopTimeout,
	}
}

// applyConfigDefaults fills the zero fields of config from DefaultConfig.
func applyConfigDefaults(config *Config) Config {
	def := DefaultConfig()
	if config == nil {
		return def
	}
	cfg := *config
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.EscalationInterval == 0 {
		cfg.EscalationInterval = def.EscalationInterval
	}
	if cfg.ShutdownPollInterval == 0 {
		cfg.ShutdownPollInterval = def.ShutdownPollInterval
	}
	if cfg.MissThreshold == 0 {
		cfg.MissThreshold = def.MissThreshold
	}
	if cfg.GuardianPath == "" {
		cfg.GuardianPath = def.GuardianPath
	}
	if cfg.HandoffEnv == "" {
		cfg.HandoffEnv = def.HandoffEnv
	}
	if cfg.SemaphoreDir == "" {
		cfg.SemaphoreDir = def.SemaphoreDir
	}
	if cfg.PrimarySemaphore == "" {
		cfg.PrimarySemaphore = def.PrimarySemaphore
	}
	if cfg.GuardianSemaphore == "" {
		cfg.GuardianSemaphore = def.GuardianSemaphore
	}
	return cfg
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: heartbeat interval must be positive", ErrInvalidConfig)
	case c.EscalationInterval <= 0:
		return fmt.Errorf("%w: escalation interval must be positive", ErrInvalidConfig)
	case c.ShutdownPollInterval <= 0:
		return fmt.Errorf("%w: shutdown poll interval must be positive", ErrInvalidConfig)
	case c.MissThreshold < 1:
		return fmt.Errorf("%w: miss threshold must be at least 1", ErrInvalidConfig)
	case c.GuardianPath == "":
		return fmt.Errorf("%w: guardian path is empty", ErrInvalidConfig)
	case c.HandoffEnv == "":
		return fmt.Errorf("%w: handoff variable is empty", ErrInvalidConfig)
	case c.PrimarySemaphore == "" || c.GuardianSemaphore == "":
		return fmt.Errorf("%w: semaphore names must be set", ErrInvalidConfig)
	case c.PrimarySemaphore == c.GuardianSemaphore:
		return fmt.Errorf("%w: semaphore names must differ", ErrInvalidConfig)
	case c.RendezvousTimeout < 0 || c.StopTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	return nil
}
