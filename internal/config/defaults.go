package config

import (
	"time"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		DataRoot:     ".",
		Layout:       map[string]string{},
		DBPath:       ".pipetask/state.db",
		ProcsPerNode: 1,
		Concurrency:  4,
		Entries:      map[string]string{},
		Log: LogConfig{
			Level: "info",
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2.0,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			Timeout:             30 * time.Second,
		},
		Options: map[string]map[string]any{},
	}
}
