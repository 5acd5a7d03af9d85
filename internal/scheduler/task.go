package scheduler

import "github.com/aristath/pipetask/internal/task"

// TaskStatus represents the scheduling state of a node.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for dependencies
	TaskRunning                     // Currently executing
	TaskCompleted                   // Finished successfully
	TaskFailed                      // Finished with error
	TaskSkipped                     // Outputs already present, not run
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskSkipped:
		return "skipped"
	}
	return "unknown"
}

// Task is one node of the task DAG: a named task of a registered type.
type Task struct {
	ID        string      // Unique node identifier, see NodeID
	Type      string      // Task type name
	Name      string      // Task name within its type
	Fields    task.Fields // Decoded identity
	DependsOn []string    // Node IDs this task depends on
	Status    TaskStatus
	Error     error // Error if failed
}

// NodeID identifies a task across types. Task names are only unique within
// a type ("pix" and "extract" share names).
func NodeID(taskType, name string) string {
	return taskType + "/" + name
}
