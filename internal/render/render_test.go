package render

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pipetask/internal/events"
	"github.com/aristath/pipetask/internal/persistence"
	"github.com/aristath/pipetask/internal/runner"
	"github.com/aristath/pipetask/internal/scheduler"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name string
		p    events.DAGProgressEvent
		want string
	}{
		{"empty dag", events.DAGProgressEvent{}, ""},
		{"half done", events.DAGProgressEvent{Total: 4, Completed: 2, Pending: 2}, "[====....]  2/4"},
		{"mixed", events.DAGProgressEvent{Total: 4, Completed: 1, Failed: 1, Running: 1, Pending: 1}, "[==!!--..]  1/4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressBar(tt.p, 8))
		})
	}
}

func TestPlan(t *testing.T) {
	dag := scheduler.NewDAG()
	require.NoError(t, dag.AddTask(&scheduler.Task{ID: "pix/a"}))
	require.NoError(t, dag.AddTask(&scheduler.Task{ID: "extract/a", DependsOn: []string{"pix/a"}}))
	order, err := dag.Order()
	require.NoError(t, err)

	out := Plan(dag, order, func(*scheduler.Task) float64 { return 2 })
	assert.Contains(t, out, "Plan: 2 tasks")
	assert.Contains(t, out, "1. pix/a")
	assert.Contains(t, out, "2. extract/a")
	assert.Contains(t, out, "<- pix/a")
	assert.Contains(t, out, "Estimated serial time: 4.0m")
	assert.Less(t, strings.Index(out, "pix/a"), strings.Index(out, "extract/a"))
}

func TestStates(t *testing.T) {
	out := States([]string{"pix"}, map[string]map[persistence.State]int{
		"pix": {persistence.StateDone: 3, persistence.StateFailed: 1},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"type", "pending", "running", "done", "failed"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"pix", "0", "0", "3", "1"}, strings.Fields(lines[1]))
}

func TestSummary(t *testing.T) {
	out := Summary(&runner.Summary{Results: []runner.TaskResult{
		{TaskID: "pix/a", Outcome: runner.OutcomeCompleted, Duration: 1500 * time.Millisecond},
		{TaskID: "psfnight/b", Outcome: runner.OutcomeFailed, Attempts: 3, Error: errors.New("exit status 1")},
		{TaskID: "extract/a", Outcome: runner.OutcomeBlocked},
	}})
	assert.Contains(t, out, "pix/a  1.5s")
	assert.Contains(t, out, "(3 attempts)")
	assert.Contains(t, out, "exit status 1")
	assert.Contains(t, out, "completed 1, skipped 0, failed 1, blocked 1")
}

func TestEvent(t *testing.T) {
	assert.Equal(t, "start extract/a procs=4", Event(events.TaskStartedEvent{ID: "extract/a", Procs: 4}))
	assert.Equal(t, "skip  pix/a", Event(events.TaskSkippedEvent{ID: "pix/a"}))
	assert.Contains(t, Event(events.TaskFailedEvent{ID: "pix/a", Err: errors.New("boom")}), "boom")
	assert.Equal(t, "["+strings.Repeat("=", 20)+strings.Repeat(".", 20)+"]  1/2", Event(events.DAGProgressEvent{Total: 2, Completed: 1}))
	assert.Empty(t, Event(nil))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StyleStatusFailed, Status("blocked"))
	assert.Equal(t, StyleStatusComplete, Status("done"))
	assert.Equal(t, StyleStatusPending, Status("pending"))
}
