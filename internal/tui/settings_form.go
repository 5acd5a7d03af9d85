package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/aristath/pipetask/internal/config"
)

// SettingsForm edits the common settings of a config interactively.
type SettingsForm struct {
	config *config.Config

	// Form field bindings (strings for Huh)
	dataRoot        string
	dbPath          string
	procsPerNode    string
	maxProcs        string
	concurrency     string
	launcher        string
	logLevel        string
	maxAttempts     string
	initialInterval string
	breakerFailures string
}

// NewSettingsForm creates a form prefilled from cfg. Apply writes the
// edited values back into cfg.
func NewSettingsForm(cfg *config.Config) *SettingsForm {
	return &SettingsForm{
		config:          cfg,
		dataRoot:        cfg.DataRoot,
		dbPath:          cfg.DBPath,
		procsPerNode:    strconv.Itoa(cfg.ProcsPerNode),
		maxProcs:        strconv.Itoa(cfg.MaxProcs),
		concurrency:     strconv.Itoa(cfg.Concurrency),
		launcher:        cfg.Launcher,
		logLevel:        strings.ToLower(cfg.Log.Level),
		maxAttempts:     strconv.Itoa(cfg.Retry.MaxAttempts),
		initialInterval: cfg.Retry.InitialInterval.String(),
		breakerFailures: strconv.FormatUint(uint64(cfg.Breaker.ConsecutiveFailures), 10),
	}
}

// Form builds the Huh form bound to the settings.
func (s *SettingsForm) Form() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("dataRoot").
				Title("Data Root").
				Value(&s.dataRoot).
				Placeholder(".").
				Validate(notEmpty("data root")),

			huh.NewInput().
				Key("dbPath").
				Title("State Database").
				Value(&s.dbPath).
				Placeholder(".pipetask/state.db").
				Validate(notEmpty("state database")),
		).Title("Locations"),

		huh.NewGroup(
			huh.NewInput().
				Key("procsPerNode").
				Title("Procs Per Node").
				Value(&s.procsPerNode).
				Validate(intAtLeast(1)),

			huh.NewInput().
				Key("maxProcs").
				Title("Max Procs Per Task (0 = procs per node)").
				Value(&s.maxProcs).
				Validate(intAtLeast(0)),

			huh.NewInput().
				Key("concurrency").
				Title("Concurrent Tasks").
				Value(&s.concurrency).
				Validate(intAtLeast(1)),

			huh.NewInput().
				Key("launcher").
				Title("Launcher").
				Value(&s.launcher).
				Placeholder("srun -n {size}"),
		).Title("Execution"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("logLevel").
				Title("Log Level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&s.logLevel),

			huh.NewInput().
				Key("maxAttempts").
				Title("Attempts Per Task").
				Value(&s.maxAttempts).
				Validate(intAtLeast(1)),

			huh.NewInput().
				Key("initialInterval").
				Title("First Retry Delay").
				Value(&s.initialInterval).
				Validate(duration),

			huh.NewInput().
				Key("breakerFailures").
				Title("Failures Before A Type's Breaker Opens").
				Value(&s.breakerFailures).
				Validate(intAtLeast(1)),
		).Title("Logging And Retries"),
	)
}

// Apply copies the form values back to the config and validates it.
func (s *SettingsForm) Apply() error {
	cfg := *s.config

	var err error
	cfg.DataRoot = strings.TrimSpace(s.dataRoot)
	cfg.DBPath = strings.TrimSpace(s.dbPath)
	cfg.Launcher = strings.TrimSpace(s.launcher)
	cfg.Log.Level = s.logLevel

	if cfg.ProcsPerNode, err = atoi("procs per node", s.procsPerNode); err != nil {
		return err
	}
	if cfg.MaxProcs, err = atoi("max procs", s.maxProcs); err != nil {
		return err
	}
	if cfg.Concurrency, err = atoi("concurrency", s.concurrency); err != nil {
		return err
	}
	if cfg.Retry.MaxAttempts, err = atoi("attempts", s.maxAttempts); err != nil {
		return err
	}
	if cfg.Retry.InitialInterval, err = time.ParseDuration(strings.TrimSpace(s.initialInterval)); err != nil {
		return fmt.Errorf("first retry delay: %w", err)
	}
	failures, err := atoi("breaker failures", s.breakerFailures)
	if err != nil {
		return err
	}
	if failures < 1 {
		return fmt.Errorf("breaker failures must be at least 1, got %d", failures)
	}
	cfg.Breaker.ConsecutiveFailures = uint32(failures)

	if err := cfg.Validate(); err != nil {
		return err
	}
	*s.config = cfg
	return nil
}

func atoi(field, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", field, v)
	}
	return n, nil
}

func notEmpty(field string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func intAtLeast(lo int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("enter a whole number")
		}
		if n < lo {
			return fmt.Errorf("must be at least %d", lo)
		}
		return nil
	}
}

func duration(v string) error {
	if _, err := time.ParseDuration(strings.TrimSpace(v)); err != nil {
		return fmt.Errorf("enter a duration like 1s or 500ms")
	}
	return nil
}
