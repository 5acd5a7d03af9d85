package procexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/aristath/pipetask/internal/logger"
	"github.com/aristath/pipetask/internal/task"
)

// Environment variables set for each rank when a group runs without a
// launcher.
const (
	EnvRank = "PIPETASK_RANK"
	EnvSize = "PIPETASK_SIZE"
)

// Config controls how entries are turned into processes.
type Config struct {
	// Entries replaces a type's entry with a full command line, keyed by
	// task type (e.g. "extract": "python -m desispec.scripts.extract").
	Entries map[string]string

	// Launcher prefixes grouped runs, e.g. "srun -n {size}". When empty a
	// grouped run starts one process per rank with EnvRank and EnvSize set.
	Launcher string

	WorkDir string
	Env     []string
}

// CommandRoutine runs an entry as an external process.
type CommandRoutine struct {
	argv     []string
	launcher []string
	dir      string
	env      []string
	pm       *ProcessManager
	log      logger.Logger
}

// NewFactory returns a task.RoutineFactory that builds CommandRoutines.
func NewFactory(cfg Config, pm *ProcessManager, log logger.Logger) task.RoutineFactory {
	if log == nil {
		log = logger.Discard()
	}
	return func(taskType, entry string) (task.Routine, error) {
		line := entry
		if custom, ok := cfg.Entries[taskType]; ok && custom != "" {
			line = custom
		}
		return NewCommandRoutine(line, cfg, pm, log.With("type", taskType))
	}
}

// NewCommandRoutine parses the command line of an entry.
func NewCommandRoutine(line string, cfg Config, pm *ProcessManager, log logger.Logger) (*CommandRoutine, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parsing entry %q: %w", line, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty entry")
	}

	var launcher []string
	if cfg.Launcher != "" {
		launcher, err = shlex.Split(cfg.Launcher)
		if err != nil {
			return nil, fmt.Errorf("parsing launcher %q: %w", cfg.Launcher, err)
		}
	}

	if log == nil {
		log = logger.Discard()
	}
	return &CommandRoutine{
		argv:     argv,
		launcher: launcher,
		dir:      cfg.WorkDir,
		env:      cfg.Env,
		pm:       pm,
		log:      log,
	}, nil
}

// Main runs the entry once.
func (r *CommandRoutine) Main(ctx context.Context, args []string) error {
	return r.exec(ctx, append(r.argv[:len(r.argv):len(r.argv)], args...), nil)
}

// MainGroup runs the entry across comm, either through the launcher or as
// one process per rank.
func (r *CommandRoutine) MainGroup(ctx context.Context, args []string, comm task.Comm) error {
	size := comm.Size()
	if len(r.launcher) > 0 {
		argv := make([]string, 0, len(r.launcher)+len(r.argv)+len(args))
		for _, tok := range r.launcher {
			argv = append(argv, strings.ReplaceAll(tok, "{size}", strconv.Itoa(size)))
		}
		argv = append(argv, r.argv...)
		argv = append(argv, args...)
		return r.exec(ctx, argv, nil)
	}

	return comm.Run(ctx, func(ctx context.Context, rank int) error {
		argv := append(r.argv[:len(r.argv):len(r.argv)], args...)
		env := []string{
			EnvRank + "=" + strconv.Itoa(rank),
			EnvSize + "=" + strconv.Itoa(size),
		}
		if err := r.exec(ctx, argv, env); err != nil {
			return fmt.Errorf("rank %d: %w", rank, err)
		}
		return nil
	})
}

func (r *CommandRoutine) exec(ctx context.Context, argv, extraEnv []string) error {
	cmd := newCommand(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.dir
	if len(r.env) > 0 || len(extraEnv) > 0 {
		cmd.Env = append(append(os.Environ(), r.env...), extraEnv...)
	}

	r.log.Debug("starting process", "argv", strings.Join(argv, " "))
	stdout, _, err := executeCommand(cmd, r.pm)
	if len(stdout) > 0 {
		r.log.Debug("process output", "argv0", argv[0], "stdout", string(bytes.TrimSpace(stdout)))
	}
	return err
}
