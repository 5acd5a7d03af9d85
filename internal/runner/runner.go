// Package runner executes a task DAG: independent tasks run concurrently,
// task state is persisted, and failures are retried and isolated.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/pipetask/internal/events"
	"github.com/aristath/pipetask/internal/logger"
	"github.com/aristath/pipetask/internal/persistence"
	"github.com/aristath/pipetask/internal/scheduler"
	"github.com/aristath/pipetask/internal/task"
	"github.com/aristath/pipetask/internal/workgroup"
)

// Outcome is how a task ended in one run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped" // Already done in the store
	OutcomeFailed    Outcome = "failed"
	OutcomeBlocked   Outcome = "blocked" // A dependency failed
)

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	TaskID   string
	Type     string
	Name     string
	Outcome  Outcome
	Procs    int
	Attempts int
	Duration time.Duration
	Error    error
}

// Summary collects the results of one Run.
type Summary struct {
	RunID   string
	Results []TaskResult
}

// Count returns the number of results with outcome o.
func (s *Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// OK reports whether no task failed or was blocked.
func (s *Summary) OK() bool {
	return s.Count(OutcomeFailed) == 0 && s.Count(OutcomeBlocked) == 0
}

// GroupFactory creates the worker group for a task that runs on more than
// one worker.
type GroupFactory func(size int) task.Comm

// Config configures the runner.
type Config struct {
	Concurrency  int                       // Max concurrent tasks (default 4)
	ProcsPerNode int                       // Passed to RunMaxProcs (default 1)
	MaxProcs     int                       // Upper bound on one task's worker group (default ProcsPerNode)
	Overrides    map[string]map[string]any // Option overrides per task type
	Retry        RetryConfig
	Breaker      BreakerConfig
	Groups       GroupFactory // Optional; defaults to workgroup.New
}

// Runner executes DAG tasks concurrently.
type Runner struct {
	cfg      Config
	reg      *task.Registry
	store    persistence.Store
	bus      *events.Bus
	log      logger.Logger
	breakers *BreakerRegistry

	mu      sync.Mutex
	runID   string
	results []TaskResult
}

// New creates a runner. bus and log may be nil.
func New(cfg Config, reg *task.Registry, store persistence.Store, bus *events.Bus, log logger.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ProcsPerNode <= 0 {
		cfg.ProcsPerNode = 1
	}
	if cfg.MaxProcs <= 0 {
		cfg.MaxProcs = cfg.ProcsPerNode
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}
	if cfg.Groups == nil {
		cfg.Groups = func(size int) task.Comm { return workgroup.New(size) }
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		cfg:      cfg,
		reg:      reg,
		store:    store,
		bus:      bus,
		log:      log,
		breakers: NewBreakerRegistry(cfg.Breaker, log),
	}
}

// Plan records every task of dag in the store. Tasks already stored keep
// their state.
func (r *Runner) Plan(ctx context.Context, dag *scheduler.DAG) error {
	for _, t := range dag.Tasks() {
		if err := r.store.Insert(ctx, t.Type, t.Name, t.Fields); err != nil {
			return err
		}
	}
	return nil
}

// Run plans dag and executes it in waves of eligible tasks. Task failures
// are reported in the summary, not as an error; the error is non-nil only
// when planning fails or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, dag *scheduler.DAG) (*Summary, error) {
	if err := r.Plan(ctx, dag); err != nil {
		return nil, fmt.Errorf("failed to plan: %w", err)
	}

	runID := uuid.NewString()
	r.mu.Lock()
	r.runID = runID
	r.results = nil
	r.mu.Unlock()
	r.log.Info("run started", "run", runID, "tasks", dag.Len())

	for {
		if err := ctx.Err(); err != nil {
			return r.summary(), err
		}

		eligible := dag.Eligible()
		if len(eligible) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Concurrency)
		for _, t := range eligible {
			g.Go(func() error {
				r.executeTask(gctx, runID, dag, t)
				return nil
			})
		}
		_ = g.Wait()

		r.publishProgress(dag)
	}

	for _, t := range dag.Blocked() {
		r.log.Warn("task blocked by failed dependency", "task", t.ID)
		r.recordResult(TaskResult{TaskID: t.ID, Type: t.Type, Name: t.Name, Outcome: OutcomeBlocked})
	}

	return r.summary(), ctx.Err()
}

// executeTask runs one task to completion, retries included. Errors are
// recorded in the DAG and the store, never returned, so one failure does not
// abort the wave.
func (r *Runner) executeTask(ctx context.Context, runID string, dag *scheduler.DAG, t *scheduler.Task) {
	log := r.log.With("run", runID, "task", t.ID)
	result := TaskResult{TaskID: t.ID, Type: t.Type, Name: t.Name}

	fail := func(err error) {
		_ = dag.MarkFailed(t.ID, err)
		result.Outcome = OutcomeFailed
		result.Error = err
		r.recordResult(result)
		r.publish(events.TopicTask, events.TaskFailedEvent{
			ID: t.ID, Err: err, Attempts: result.Attempts, Duration: result.Duration, Timestamp: time.Now(),
		})
		log.Error("task failed", "attempts", result.Attempts, "err", err)
	}

	if err := ctx.Err(); err != nil {
		fail(fmt.Errorf("context cancelled before execution: %w", err))
		return
	}

	inst, err := r.reg.Get(t.Type)
	if err != nil {
		fail(err)
		return
	}

	done, err := r.claim(ctx, t)
	if err != nil {
		fail(err)
		return
	}
	if done {
		_ = dag.MarkSkipped(t.ID)
		result.Outcome = OutcomeSkipped
		r.recordResult(result)
		r.publish(events.TopicTask, events.TaskSkippedEvent{ID: t.ID, Timestamp: time.Now()})
		log.Debug("task already done")
		return
	}

	if err := dag.MarkRunning(t.ID); err != nil {
		log.Error("failed to mark task running", "err", err)
	}

	procs := min(inst.RunMaxProcs(r.cfg.ProcsPerNode), r.cfg.MaxProcs)
	var exec task.Execution = task.Local{}
	if procs > 1 {
		exec = task.Grouped{Comm: r.cfg.Groups(procs)}
	} else {
		procs = 1
	}
	result.Procs = procs

	r.publish(events.TopicTask, events.TaskStartedEvent{
		ID: t.ID, Type: t.Type, Name: t.Name, Procs: procs, Timestamp: time.Now(),
	})
	log.Info("task started", "procs", procs)

	overrides := r.cfg.Overrides[t.Type]
	attempt := func(ctx context.Context) error {
		start := time.Now()
		err := inst.Run(ctx, t.Name, overrides, exec)
		if recErr := r.store.RecordRun(ctx, persistence.Run{
			RunID: runID, Type: t.Type, Name: t.Name, Started: start, Duration: time.Since(start), Err: err,
		}); recErr != nil {
			log.Warn("failed to record run", "err", recErr)
		}
		return err
	}
	onRetry := func(n int, err error, wait time.Duration) {
		r.publish(events.TopicTask, events.TaskRetryingEvent{
			ID: t.ID, Err: err, Attempt: n, Wait: wait, Timestamp: time.Now(),
		})
		log.Warn("task attempt failed, retrying", "attempt", n, "wait", wait, "err", err)
	}

	start := time.Now()
	result.Attempts, err = runWithRetry(ctx, attempt, r.breakers.Get(t.Type), r.cfg.Retry, onRetry)
	result.Duration = time.Since(start)

	// The final state is written even when ctx is cancelled.
	stateCtx := context.WithoutCancel(ctx)
	if err != nil {
		if stErr := r.store.SetState(stateCtx, t.Type, t.Name, persistence.StateFailed); stErr != nil {
			log.Error("failed to store task state", "err", stErr)
		}
		fail(err)
		return
	}

	if err := r.store.SetState(stateCtx, t.Type, t.Name, persistence.StateDone); err != nil {
		fail(fmt.Errorf("failed to store task state: %w", err))
		return
	}
	_ = dag.MarkCompleted(t.ID)
	result.Outcome = OutcomeCompleted
	r.recordResult(result)
	r.publish(events.TopicTask, events.TaskCompletedEvent{ID: t.ID, Duration: result.Duration, Timestamp: time.Now()})
	log.Info("task completed", "duration", result.Duration)
}

// claim moves the stored task to running. It reports done=true, without
// changing anything, when the task already finished in an earlier run.
// Failed tasks and tasks left running by an interrupted run are reset first.
func (r *Runner) claim(ctx context.Context, t *scheduler.Task) (bool, error) {
	st, err := r.store.State(ctx, t.Type, t.Name)
	if err != nil {
		return false, err
	}

	switch st {
	case persistence.StateDone:
		return true, nil
	case persistence.StateRunning:
		if err := r.store.SetState(ctx, t.Type, t.Name, persistence.StateFailed); err != nil {
			return false, err
		}
		fallthrough
	case persistence.StateFailed:
		if err := r.store.SetState(ctx, t.Type, t.Name, persistence.StatePending); err != nil {
			return false, err
		}
	}

	if err := r.store.SetState(ctx, t.Type, t.Name, persistence.StateRunning); err != nil {
		if errors.Is(err, persistence.ErrTransition) {
			return false, fmt.Errorf("task claimed by another runner: %w", err)
		}
		return false, err
	}
	return false, nil
}

func (r *Runner) publish(topic string, ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(topic, ev)
	}
}

func (r *Runner) publishProgress(dag *scheduler.DAG) {
	counts := dag.Counts()
	r.publish(events.TopicDAG, events.DAGProgressEvent{
		Total:     dag.Len(),
		Completed: counts[scheduler.TaskCompleted] + counts[scheduler.TaskSkipped],
		Running:   counts[scheduler.TaskRunning],
		Failed:    counts[scheduler.TaskFailed],
		Pending:   counts[scheduler.TaskPending],
		Timestamp: time.Now(),
	})
}

// recordResult appends a task result in a thread-safe manner.
func (r *Runner) recordResult(result TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *Runner) summary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Summary{RunID: r.runID, Results: append([]TaskResult(nil), r.results...)}
}
