package persistence

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of one task, stored in its state column.
type State int

const (
	StatePending State = iota // Waiting to run
	StateRunning              // Currently executing
	StateDone                 // Finished successfully
	StateFailed               // Finished with error
)

var stateNames = [...]string{"pending", "running", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses a state name.
func ParseState(s string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(s, n) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", s)
}

// CanTransition reports whether from -> to is allowed:
// pending -> running -> done, running -> failed, failed -> pending.
func CanTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning
	case StateRunning:
		return to == StateDone || to == StateFailed
	case StateFailed:
		return to == StatePending
	}
	return false
}
