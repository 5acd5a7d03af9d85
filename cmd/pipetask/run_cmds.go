package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/pipetask/internal/events"
	"github.com/aristath/pipetask/internal/logger"
	"github.com/aristath/pipetask/internal/persistence"
	"github.com/aristath/pipetask/internal/render"
	"github.com/aristath/pipetask/internal/runner"
	"github.com/aristath/pipetask/internal/scheduler"
	"github.com/aristath/pipetask/internal/task"
	"github.com/aristath/pipetask/internal/tui"
	"github.com/aristath/pipetask/internal/workgroup"
)

func newRunCommand(a *app) *cobra.Command {
	var sets []string
	var procs int
	cmd := &cobra.Command{
		Use:   "run <type> <name>",
		Short: "Run one task, ignoring its dependencies and stored state",
		Long: `Run one task through its entry. With --procs above 1 the task runs on a
worker group of that size (capped by the type's maximum). No retry is done and
the state database is not touched; use runall for that.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.instance(args[0], args[1])
			if err != nil {
				return err
			}
			overrides, err := a.overrides(args[0], sets)
			if err != nil {
				return err
			}

			var exec task.Execution = task.Local{}
			if n := min(procs, inst.RunMaxProcs(a.cfg.ProcsPerNode)); n > 1 {
				exec = task.Grouped{Comm: workgroup.New(n)}
			}

			start := time.Now()
			a.log.Info("running task", "type", args[0], "name", args[1])
			if err := inst.Run(cmd.Context(), args[1], overrides, exec); err != nil {
				return fmt.Errorf("%s %s: %w", args[0], args[1], err)
			}
			a.log.Info("task finished", "type", args[0], "name", args[1], "duration", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override an option (key=value, repeatable)")
	cmd.Flags().IntVar(&procs, "procs", 1, "worker group size")
	return cmd
}

// parseRoots reads "<type> <name>..." arguments.
func parseRoots(a *app, args []string) ([]scheduler.Ref, error) {
	roots := make([]scheduler.Ref, 0, len(args)-1)
	for _, name := range args[1:] {
		if _, err := a.instance(args[0], name); err != nil {
			return nil, err
		}
		roots = append(roots, scheduler.Ref{Type: args[0], Name: name})
	}
	return roots, nil
}

func newPlanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <type> <name>...",
		Short: "Show the tasks runall would execute, in order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := parseRoots(a, args)
			if err != nil {
				return err
			}
			dag, err := scheduler.Expand(a.reg, roots)
			if err != nil {
				return err
			}
			order, err := dag.Order()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			runtime := func(t *scheduler.Task) float64 {
				inst, err := a.reg.Get(t.Type)
				if err != nil {
					return 0
				}
				return inst.RunTime(ctx, t.Name, a.cfg.ProcsPerNode, store)
			}
			fmt.Fprint(cmd.OutOrStdout(), render.Plan(dag, order, runtime))
			return nil
		},
	}
}

func newRunAllCommand(a *app) *cobra.Command {
	var concurrency, maxProcs int
	var quiet, useTUI bool
	cmd := &cobra.Command{
		Use:   "runall <type> <name>...",
		Short: "Run tasks and everything they depend on",
		Long: `Expand the named tasks into their dependency graph and run it. Independent
tasks run concurrently; tasks already done in the state database are skipped,
failed ones are retried. Exits with status 2 when any task failed or was
blocked by a failed dependency.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := parseRoots(a, args)
			if err != nil {
				return err
			}
			dag, err := scheduler.Expand(a.reg, roots)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			if concurrency <= 0 {
				concurrency = a.cfg.Concurrency
			}
			if maxProcs <= 0 {
				maxProcs = a.cfg.MaxProcs
			}

			runLog := a.log
			if useTUI {
				f, err := openRunLog(a.cfg.DBPath)
				if err != nil {
					return err
				}
				defer f.Close()
				runLog = logger.NewLogger(&logger.Config{
					Level:      logger.LogLevel(a.cfg.Log.Level),
					Output:     f,
					JSON:       a.cfg.Log.JSON,
					TimeFormat: time.RFC3339,
				})
			}

			bus := events.NewBus()
			r := runner.New(runnerConfig(a, concurrency, maxProcs), a.reg, store, bus, runLog)

			var summary *runner.Summary
			var runErr error
			if useTUI {
				summary, runErr = runWithDashboard(ctx, cmd, r, dag, bus)
			} else {
				var watching sync.WaitGroup
				if !quiet {
					ch := bus.SubscribeAll(0)
					watching.Add(1)
					go func() {
						defer watching.Done()
						render.Watch(cmd.ErrOrStderr(), ch)
					}()
				}
				summary, runErr = r.Run(ctx, dag)
				bus.Close()
				watching.Wait()
			}

			if n := bus.Dropped(); n > 0 {
				runLog.Warn("progress events dropped by a slow subscriber", "count", n)
			}
			runLog.Debug("path cache", "entries", a.layout.Cached())

			if summary != nil {
				fmt.Fprint(cmd.OutOrStdout(), render.Summary(summary))
			}
			if runErr != nil {
				return runErr
			}
			if !summary.OK() {
				return errTasksFailed
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "tasks run at once (default from config)")
	cmd.Flags().IntVar(&maxProcs, "max-procs", 0, "cap on one task's worker group (default from config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show an interactive dashboard; logs go to runall.log next to the state database")
	cmd.MarkFlagsMutuallyExclusive("quiet", "tui")
	return cmd
}

func runnerConfig(a *app, concurrency, maxProcs int) runner.Config {
	return runner.Config{
		Concurrency:  concurrency,
		ProcsPerNode: a.cfg.ProcsPerNode,
		MaxProcs:     maxProcs,
		Overrides:    a.cfg.Options,
		Retry: runner.RetryConfig{
			MaxAttempts:         a.cfg.Retry.MaxAttempts,
			InitialInterval:     a.cfg.Retry.InitialInterval,
			MaxInterval:         a.cfg.Retry.MaxInterval,
			Multiplier:          a.cfg.Retry.Multiplier,
			RandomizationFactor: 0.5,
		},
		Breaker: runner.BreakerConfig{
			ConsecutiveFailures: a.cfg.Breaker.ConsecutiveFailures,
			Timeout:             a.cfg.Breaker.Timeout,
			MaxRequests:         1,
		},
	}
}

// runWithDashboard runs the DAG in the background while the dashboard owns
// the terminal. Quitting the dashboard early cancels the run.
func runWithDashboard(ctx context.Context, cmd *cobra.Command, r *runner.Runner, dag *scheduler.DAG, bus *events.Bus) (*runner.Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(bus)
	var summary *runner.Summary
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		summary, runErr = r.Run(runCtx, dag)
		bus.Close()
	}()

	final, err := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.ErrOrStderr()),
	).Run()
	if m, ok := final.(tui.Model); err != nil || !ok || m.Interrupted() {
		cancel()
	}
	<-done

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return summary, fmt.Errorf("dashboard: %w", err)
	}
	return summary, runErr
}

// openRunLog opens the log file used while the dashboard owns the terminal.
func openRunLog(dbPath string) (*os.File, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, "runall.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	return f, nil
}

func newStateCommand(a *app) *cobra.Command {
	var listState string
	cmd := &cobra.Command{
		Use:   "state [type]",
		Short: "Show stored task state",
		Long: `Without arguments, print per-type counts of stored tasks by state. With a
type, list its stored tasks; --state filters the list.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				types := a.reg.Types()
				counts := make(map[string]map[persistence.State]int, len(types))
				for _, typ := range types {
					if counts[typ], err = store.Counts(ctx, typ); err != nil {
						return err
					}
				}
				fmt.Fprint(out, render.States(types, counts))
				return nil
			}

			var recs []*persistence.Record
			if listState != "" {
				st, err := persistence.ParseState(listState)
				if err != nil {
					return err
				}
				recs, err = store.ListByState(ctx, args[0], st)
				if err != nil {
					return err
				}
			} else if recs, err = store.List(ctx, args[0]); err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Fprintf(out, "%-8s %s\n", render.Status(rec.State.String()).Render(rec.State.String()), rec.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listState, "state", "", "only list tasks in this state")
	return cmd
}
