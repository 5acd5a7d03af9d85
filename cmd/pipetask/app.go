package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aristath/pipetask/internal/config"
	"github.com/aristath/pipetask/internal/findfile"
	"github.com/aristath/pipetask/internal/logger"
	"github.com/aristath/pipetask/internal/persistence"
	"github.com/aristath/pipetask/internal/procexec"
	"github.com/aristath/pipetask/internal/task"
	"github.com/aristath/pipetask/internal/tasks"
)

// version is set at build time via ldflags.
var version = "dev"

// errTasksFailed marks a run that finished with failed or blocked tasks.
var errTasksFailed = errors.New("some tasks did not complete")

// app holds everything the commands share. It is filled by the root
// command's PersistentPreRunE.
type app struct {
	v           *viper.Viper
	projectPath string
	cfg         *config.Config
	log         logger.Logger
	layout      *findfile.Layout
	pm          *procexec.ProcessManager
	reg         *task.Registry
	store       persistence.Store
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pipetask",
		Short: "Inspect and run pipeline tasks",
		Long: `pipetask knows the task types of the spectroscopic pipeline: how their
names encode identity fields, which tasks each depends on, where their outputs
live, and which command line runs them. It can run single tasks or whole
dependency graphs, recording task state in a SQLite database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.projectPath, "config", "", "project config file (default .pipetask/config.yaml)")
	flags.String("data-root", "", "root directory of pipeline files")
	flags.String("db", "", "task state database")
	flags.Int("procs-per-node", 0, "workers available per node")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "log JSON lines")

	root.AddCommand(
		newTypesCommand(a),
		newNameCommand(a),
		newFiletypesCommand(a),
		newPathsCommand(a),
		newDepsCommand(a),
		newOptionsCommand(a),
		newCmdlineCommand(a),
		newRunCommand(a),
		newPlanCommand(a),
		newRunAllCommand(a),
		newStateCommand(a),
		newConfigCommand(a),
	)
	return root
}

var flagKeys = map[string]string{
	"data-root":      "data_root",
	"db":             "db_path",
	"procs-per-node": "procs_per_node",
	"log-level":      "log.level",
	"log-json":       "log.json",
}

func (a *app) init(cmd *cobra.Command) error {
	global, project, err := config.DefaultPaths()
	if err != nil {
		return err
	}
	if a.projectPath != "" {
		project = a.projectPath
	}

	v, err := config.New(global, project)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	a.v = v
	a.cfg = cfg

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.LogLevel(cfg.Log.Level)
	logCfg.JSON = cfg.Log.JSON
	logCfg.Output = cmd.ErrOrStderr()
	a.log = logger.NewLogger(logCfg)
	cmd.SetContext(logger.ContextWithLogger(cmd.Context(), a.log))

	a.layout, err = findfile.New(cfg.DataRoot, cfg.Layout)
	if err != nil {
		return err
	}

	a.pm = procexec.NewProcessManager()
	routines := procexec.NewFactory(procexec.Config{
		Entries:  cfg.Entries,
		Launcher: cfg.Launcher,
	}, a.pm, a.log)

	b := task.NewBuilder(a.layout, routines)
	if err := tasks.Register(b); err != nil {
		return err
	}
	a.reg, err = b.Build()
	return err
}

// openStore opens the state database and creates the per-type tables.
func (a *app) openStore(ctx context.Context) (persistence.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := persistence.NewSQLiteStore(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx, a.reg.Descriptors()); err != nil {
		store.Close()
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.log != nil {
			a.log.Warn("failed to close store", "err", err)
		}
	}
}

// instance resolves a type and validates name against it.
func (a *app) instance(taskType, name string) (*task.Instance, error) {
	inst, err := a.reg.Get(taskType)
	if err != nil {
		return nil, err
	}
	if name != "" {
		if _, err := inst.Split(name); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// overrides merges configured per-type options with --set values; --set
// wins.
func (a *app) overrides(taskType string, sets []string) (map[string]any, error) {
	out := make(map[string]any)
	for k, v := range a.cfg.Options[taskType] {
		out[k] = v
	}
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", s)
		}
		out[k] = parseValue(v)
	}
	return out, nil
}

// parseValue reads a flag value as bool, integer or float when it parses as
// one, else as a string.
func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// parseFields parses key=value arguments against a descriptor's identity.
func parseFields(d *task.Descriptor, args []string) (task.Fields, error) {
	f := make(task.Fields, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q: want key=value", arg)
		}
		field, ok := d.Field(k)
		if !ok {
			return nil, fmt.Errorf("%s has no identity field %q", d.Type, k)
		}
		if field.Type == task.Integer {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			f[k] = n
			continue
		}
		f[k] = v
	}
	return f, nil
}

// exitCode maps errors to process exit codes.
func exitCode(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, errTasksFailed) {
		return 2
	}
	return 1
}
