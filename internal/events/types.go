package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicDAG  = "dag"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskRetrying  = "task.retrying"
	EventTypeTaskSkipped   = "task.skipped"
	EventTypeDAGProgress   = "dag.progress"
)

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	ID        string
	Type      string
	Name      string
	Procs     int // Worker group size, 1 for local runs
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task has failed for good.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskRetryingEvent is published before a failed attempt is retried.
type TaskRetryingEvent struct {
	ID        string
	Err       error
	Attempt   int
	Wait      time.Duration
	Timestamp time.Time
}

func (e TaskRetryingEvent) EventType() string { return EventTypeTaskRetrying }
func (e TaskRetryingEvent) TaskID() string    { return e.ID }

// TaskSkippedEvent is published for tasks already done in the store.
type TaskSkippedEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) TaskID() string    { return e.ID }

// DAGProgressEvent is published when DAG progress changes.
type DAGProgressEvent struct {
	Total     int
	Completed int
	Running   int
	Failed    int
	Pending   int
	Timestamp time.Time
}

func (e DAGProgressEvent) EventType() string { return EventTypeDAGProgress }
func (e DAGProgressEvent) TaskID() string    { return "" }
