// Package config loads pairwatch settings from defaults, an optional config
// file and PAIRWATCH_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/warpdl/pairwatch/common"
	"github.com/warpdl/pairwatch/internal/watchdog"
)

// Keys understood in config files and, upper-cased with the PAIRWATCH_
// prefix, in the environment.
const (
	KeyHeartbeatInterval    = "heartbeat_interval"
	KeyEscalationInterval   = "escalation_interval"
	KeyShutdownPollInterval = "shutdown_poll_interval"
	KeyMissThreshold        = "miss_threshold"
	KeyGuardianPath         = "guardian_path"
	KeyHandoffEnv           = "handoff_env"
	KeySemaphoreDir         = "semaphore_dir"
	KeyPrimarySemaphore     = "primary_semaphore"
	KeyGuardianSemaphore    = "guardian_semaphore"
	KeyRendezvousTimeout    = "rendezvous_timeout"
	KeyStopTimeout          = "stop_timeout"
	KeyStateDir             = "state_dir"
	KeyMetricsAddr          = "metrics_addr"
)

// Config is the complete runtime configuration.
type Config struct {
	Watchdog watchdog.Config

	// StateDir holds the guardian pid file.
	StateDir string

	// MetricsAddr is where pairwatchd serves /metrics. Empty disables it.
	MetricsAddr string
}

// DefaultStateDir returns $XDG_CONFIG_HOME/pairwatch or its platform
// equivalent, falling back to the temp directory.
func DefaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pairwatch")
	}
	return filepath.Join(dir, "pairwatch")
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	def := watchdog.DefaultConfig()
	v.SetDefault(KeyHeartbeatInterval, def.HeartbeatInterval)
	v.SetDefault(KeyEscalationInterval, def.EscalationInterval)
	v.SetDefault(KeyShutdownPollInterval, def.ShutdownPollInterval)
	v.SetDefault(KeyMissThreshold, def.MissThreshold)
	v.SetDefault(KeyGuardianPath, def.GuardianPath)
	v.SetDefault(KeyHandoffEnv, def.HandoffEnv)
	v.SetDefault(KeySemaphoreDir, def.SemaphoreDir)
	v.SetDefault(KeyPrimarySemaphore, def.PrimarySemaphore)
	v.SetDefault(KeyGuardianSemaphore, def.GuardianSemaphore)
	v.SetDefault(KeyRendezvousTimeout, def.RendezvousTimeout)
	v.SetDefault(KeyStopTimeout, def.StopTimeout)
	v.SetDefault(KeyStateDir, DefaultStateDir())
	v.SetDefault(KeyMetricsAddr, "")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(common.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, if given, over the defaults and environment. When path
// is empty the file named by PAIRWATCH_CONFIG is used, if any.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(common.ConfigFileEnv)
	}
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Watchdog: watchdog.Config{
			HeartbeatInterval:    v.GetDuration(KeyHeartbeatInterval),
			EscalationInterval:   v.GetDuration(KeyEscalationInterval),
			ShutdownPollInterval: v.GetDuration(KeyShutdownPollInterval),
			MissThreshold:        v.GetInt(KeyMissThreshold),
			GuardianPath:         v.GetString(KeyGuardianPath),
			HandoffEnv:           v.GetString(KeyHandoffEnv),
			SemaphoreDir:         v.GetString(KeySemaphoreDir),
			PrimarySemaphore:     v.GetString(KeyPrimarySemaphore),
			GuardianSemaphore:    v.GetString(KeyGuardianSemaphore),
			RendezvousTimeout:    v.GetDuration(KeyRendezvousTimeout),
			StopTimeout:          v.GetDuration(KeyStopTimeout),
		},
		StateDir:    v.GetString(KeyStateDir),
		MetricsAddr: v.GetString(KeyMetricsAddr),
	}
	if err := cfg.Watchdog.Validate(); err != nil {
		return nil, err
	}
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("%w: state dir is empty", watchdog.ErrInvalidConfig)
	}
	return cfg, nil
}
