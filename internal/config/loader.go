// Package config loads pipetask configuration from YAML or JSON files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: PIPETASK_DB_PATH,
// PIPETASK_LOG_LEVEL, ...
const EnvPrefix = "PIPETASK"

// New returns a viper instance holding defaults, then the global file, then
// the project file, then the environment. Missing files are skipped; a
// malformed file is an error. Callers may bind flags on top before Decode.
func New(globalPath, projectPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	// Merge global config if exists
	if err := mergeConfigFile(v, globalPath); err != nil {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	// Merge project config if exists (highest file precedence)
	if err := mergeConfigFile(v, projectPath); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Decode unmarshals v into a validated Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Layout == nil {
		cfg.Layout = map[string]string{}
	}
	if cfg.Entries == nil {
		cfg.Entries = map[string]string{}
	}
	if cfg.Options == nil {
		cfg.Options = map[string]map[string]any{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): environment, project config,
// global config, defaults.
func Load(globalPath, projectPath string) (*Config, error) {
	v, err := New(globalPath, projectPath)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// DefaultPaths returns the conventional config locations.
// Global: ~/.pipetask/config.yaml
// Project: .pipetask/config.yaml (relative to cwd)
func DefaultPaths() (global, project string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pipetask", "config.yaml"), filepath.Join(".pipetask", "config.yaml"), nil
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*Config, error) {
	global, project, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(global, project)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.ProcsPerNode < 1 {
		errs = append(errs, fmt.Errorf("procs_per_node must be at least 1, got %d", c.ProcsPerNode))
	}
	if c.MaxProcs < 0 {
		errs = append(errs, fmt.Errorf("max_procs must not be negative, got %d", c.MaxProcs))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// mergeConfigFile merges a YAML or JSON file, chosen by extension, into v.
// Missing files are silently skipped.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_root", cfg.DataRoot)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("procs_per_node", cfg.ProcsPerNode)
	v.SetDefault("max_procs", cfg.MaxProcs)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("launcher", cfg.Launcher)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.json", cfg.Log.JSON)
	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.initial_interval", cfg.Retry.InitialInterval)
	v.SetDefault("retry.max_interval", cfg.Retry.MaxInterval)
	v.SetDefault("retry.multiplier", cfg.Retry.Multiplier)
	v.SetDefault("breaker.consecutive_failures", cfg.Breaker.ConsecutiveFailures)
	v.SetDefault("breaker.timeout", cfg.Breaker.Timeout)
}
