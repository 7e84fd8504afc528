// Package common holds names shared by the pairwatch binaries.
package common

// Environment variable names for configuration.
const (
	// EnvPrefix prefixes every configuration key read from the environment,
	// e.g. PAIRWATCH_MISS_THRESHOLD.
	EnvPrefix = "PAIRWATCH"

	// ConfigFileEnv names a config file to load when --config is not given.
	ConfigFileEnv = "PAIRWATCH_CONFIG"

	// StateDirEnv overrides the directory holding the guardian pid file.
	StateDirEnv = "PAIRWATCH_STATE_DIR"

	// DebugEnv enables debug logging.
	DebugEnv = "PAIRWATCH_DEBUG"
)
