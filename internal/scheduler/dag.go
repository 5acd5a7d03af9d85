package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// DAG is a directed acyclic graph of tasks.
type DAG struct {
	mu         sync.RWMutex
	tasks      map[string]*Task    // All tasks indexed by ID
	dependents map[string][]string // Maps taskID -> list of tasks that depend on it
}

// NewDAG creates an empty DAG.
func NewDAG() *DAG {
	return &DAG{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// AddTask adds a task to the DAG. Returns error if task ID already exists.
func (d *DAG) AddTask(task *Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %q already exists", task.ID)
	}

	d.tasks[task.ID] = task
	for _, depID := range task.DependsOn {
		d.dependents[depID] = append(d.dependents[depID], task.ID)
	}

	return nil
}

// Len returns the number of tasks.
func (d *DAG) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tasks)
}

// Validate sorts the DAG topologically. It fails if a dependency is missing
// or the graph has a cycle. The returned order puts every task after all of
// its dependencies.
func (d *DAG) Validate() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.sortedIDs()
	for _, taskID := range ids {
		for _, depID := range d.tasks[taskID].DependsOn {
			if _, exists := d.tasks[depID]; !exists {
				return nil, fmt.Errorf("task %q depends on non-existent task %q", taskID, depID)
			}
		}
	}

	var edges []toposort.Edge
	for _, taskID := range ids {
		task := d.tasks[taskID]
		if len(task.DependsOn) == 0 {
			// Edge from nil keeps isolated tasks in the result.
			edges = append(edges, toposort.Edge{nil, taskID})
			continue
		}
		for _, depID := range task.DependsOn {
			edges = append(edges, toposort.Edge{depID, taskID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("DAG contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(d.tasks) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for _, taskID := range ids {
			if !found[taskID] {
				missing = append(missing, taskID)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Eligible returns pending tasks whose dependencies are all resolved,
// ordered by ID.
func (d *DAG) Eligible() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	eligible := []*Task{}
	for _, taskID := range d.sortedIDs() {
		task := d.tasks[taskID]
		if task.Status != TaskPending {
			continue
		}

		ready := true
		for _, depID := range task.DependsOn {
			dep, exists := d.tasks[depID]
			if !exists || !isResolved(dep) {
				ready = false
				break
			}
		}
		if ready {
			eligible = append(eligible, cloneTask(task))
		}
	}
	return eligible
}

// Blocked returns pending tasks that can never run because a dependency,
// direct or transitive, has failed.
func (d *DAG) Blocked() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	blocked := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		for _, child := range d.dependents[id] {
			if blocked[child] {
				continue
			}
			blocked[child] = true
			visit(child)
		}
	}
	for _, taskID := range d.sortedIDs() {
		if d.tasks[taskID].Status == TaskFailed {
			visit(taskID)
		}
	}

	out := []*Task{}
	for _, taskID := range d.sortedIDs() {
		if blocked[taskID] && d.tasks[taskID].Status == TaskPending {
			out = append(out, cloneTask(d.tasks[taskID]))
		}
	}
	return out
}

// isResolved reports whether dependents of dep may run.
func isResolved(dep *Task) bool {
	return dep.Status == TaskCompleted || dep.Status == TaskSkipped
}

func (d *DAG) setStatus(taskID string, status TaskStatus, err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	task.Status = status
	task.Error = err
	return nil
}

// MarkRunning sets task status to TaskRunning.
func (d *DAG) MarkRunning(taskID string) error {
	return d.setStatus(taskID, TaskRunning, nil)
}

// MarkCompleted sets task status to TaskCompleted.
func (d *DAG) MarkCompleted(taskID string) error {
	return d.setStatus(taskID, TaskCompleted, nil)
}

// MarkSkipped sets task status to TaskSkipped.
func (d *DAG) MarkSkipped(taskID string) error {
	return d.setStatus(taskID, TaskSkipped, nil)
}

// MarkFailed sets task status to TaskFailed and stores err. Dependents stay
// pending and show up in Blocked.
func (d *DAG) MarkFailed(taskID string, err error) error {
	return d.setStatus(taskID, TaskFailed, err)
}

// Get returns a copy of the task with the given ID.
func (d *DAG) Get(taskID string) (*Task, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks ordered by ID.
func (d *DAG) Tasks() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tasks := make([]*Task, 0, len(d.tasks))
	for _, taskID := range d.sortedIDs() {
		tasks = append(tasks, cloneTask(d.tasks[taskID]))
	}
	return tasks
}

// Counts returns the number of tasks in each status.
func (d *DAG) Counts() map[TaskStatus]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	counts := make(map[TaskStatus]int)
	for _, task := range d.tasks {
		counts[task.Status]++
	}
	return counts
}

// Order returns topologically sorted task IDs (calls Validate).
func (d *DAG) Order() ([]string, error) {
	return d.Validate()
}

// sortedIDs must be called with d.mu held.
func (d *DAG) sortedIDs() []string {
	ids := make([]string, 0, len(d.tasks))
	for id := range d.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	if task.Fields != nil {
		cp.Fields = make(map[string]any, len(task.Fields))
		for k, v := range task.Fields {
			cp.Fields[k] = v
		}
	}
	return &cp
}
