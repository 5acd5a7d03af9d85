package config

import (
	"time"
)

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn or error
	JSON  bool   `mapstructure:"json" yaml:"json"`   // Emit JSON lines instead of text
}

// RetryConfig configures task retries.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"` // Attempts including the first
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier" yaml:"multiplier"`
}

// MarshalYAML writes durations in their string form ("1s") so saved files
// stay readable and load back through the duration decode hook.
func (r RetryConfig) MarshalYAML() (any, error) {
	return map[string]any{
		"max_attempts":     r.MaxAttempts,
		"initial_interval": r.InitialInterval.String(),
		"max_interval":     r.MaxInterval.String(),
		"multiplier":       r.Multiplier,
	}, nil
}

// BreakerConfig configures the per-type circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" yaml:"consecutive_failures"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

func (b BreakerConfig) MarshalYAML() (any, error) {
	return map[string]any{
		"consecutive_failures": b.ConsecutiveFailures,
		"timeout":              b.Timeout.String(),
	}, nil
}

// Config is the top-level configuration.
type Config struct {
	DataRoot     string            `mapstructure:"data_root" yaml:"data_root"`             // Root of all pipeline files
	Layout       map[string]string `mapstructure:"layout" yaml:"layout,omitempty"`         // Filetype -> path template override
	DBPath       string            `mapstructure:"db_path" yaml:"db_path"`                 // SQLite state database
	ProcsPerNode int               `mapstructure:"procs_per_node" yaml:"procs_per_node"`   // Workers available per node
	MaxProcs     int               `mapstructure:"max_procs" yaml:"max_procs,omitempty"`   // Cap on one task's group size (0 = procs_per_node)
	Concurrency  int               `mapstructure:"concurrency" yaml:"concurrency"`         // Tasks run at once
	Launcher     string            `mapstructure:"launcher" yaml:"launcher,omitempty"`     // Prefix for grouped commands, e.g. "srun -n {size}"
	Entries      map[string]string `mapstructure:"entries" yaml:"entries,omitempty"`       // Type -> command line replacing the type's entry
	Log          LogConfig         `mapstructure:"log" yaml:"log"`
	Retry        RetryConfig       `mapstructure:"retry" yaml:"retry"`
	Breaker      BreakerConfig     `mapstructure:"breaker" yaml:"breaker"`

	// Options holds per-type option overrides: type -> key -> value.
	Options map[string]map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}
