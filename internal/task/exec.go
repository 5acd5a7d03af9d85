package task

import (
	"context"
	"fmt"
)

// Comm is a fixed-size group of cooperating workers. Run invokes fn once per
// member concurrently and returns only after every member has returned.
type Comm interface {
	Size() int
	Run(ctx context.Context, fn func(ctx context.Context, rank int) error) error
}

// Routine is the processing routine behind a task type. Both entry points
// take the same flat argument list.
type Routine interface {
	// Main runs the routine in a single process.
	Main(ctx context.Context, args []string) error

	// MainGroup runs the routine across comm. The routine partitions the
	// work itself.
	MainGroup(ctx context.Context, args []string, comm Comm) error
}

// RoutineFactory returns the routine that executes a type's entry.
type RoutineFactory func(taskType, entry string) (Routine, error)

// Execution selects how a routine is invoked. It is either Local or Grouped.
type Execution interface {
	execution()
}

// Local runs the routine synchronously in the calling process.
type Local struct{}

// Grouped runs the routine across a worker group.
type Grouped struct {
	Comm Comm
}

func (Local) execution()   {}
func (Grouped) execution() {}

// Dispatch calls the routine entry point matching exec. A nil exec means
// Local. Errors from the routine are returned unchanged.
func Dispatch(ctx context.Context, r Routine, args []string, exec Execution) error {
	switch e := exec.(type) {
	case nil, Local:
		return r.Main(ctx, args)
	case Grouped:
		if e.Comm == nil {
			return fmt.Errorf("grouped execution without a worker group")
		}
		return r.MainGroup(ctx, args, e.Comm)
	default:
		return fmt.Errorf("unsupported execution %T", exec)
	}
}

// RoutineFunc adapts an in-process function into a Routine. The grouped
// entry calls fn once per rank.
type RoutineFunc func(ctx context.Context, args []string, rank, size int) error

func (f RoutineFunc) Main(ctx context.Context, args []string) error {
	return f(ctx, args, 0, 1)
}

func (f RoutineFunc) MainGroup(ctx context.Context, args []string, comm Comm) error {
	size := comm.Size()
	return comm.Run(ctx, func(ctx context.Context, rank int) error {
		return f(ctx, args, rank, size)
	})
}
