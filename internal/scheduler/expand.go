package scheduler

import (
	"fmt"

	"github.com/aristath/pipetask/internal/task"
)

// Ref names one task of one type.
type Ref struct {
	Type string
	Name string
}

func (r Ref) String() string { return NodeID(r.Type, r.Name) }

// Expand builds the DAG of roots and everything they transitively depend
// on, then validates it. Each task appears once however many tasks depend
// on it.
func Expand(reg *task.Registry, roots []Ref) (*DAG, error) {
	dag := NewDAG()
	seen := make(map[string]bool)
	queue := append([]Ref(nil), roots...)

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		id := ref.String()
		if seen[id] {
			continue
		}
		seen[id] = true

		inst, err := reg.Get(ref.Type)
		if err != nil {
			return nil, err
		}
		fields, err := inst.Split(ref.Name)
		if err != nil {
			return nil, err
		}
		deps, err := inst.Deps(ref.Name)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", id, err)
		}

		dependsOn := make([]string, 0, len(deps))
		for _, dep := range deps {
			depRef := Ref{Type: dep.Type, Name: dep.Name}
			dependsOn = append(dependsOn, depRef.String())
			queue = append(queue, depRef)
		}

		if err := dag.AddTask(&Task{
			ID:        id,
			Type:      ref.Type,
			Name:      ref.Name,
			Fields:    fields,
			DependsOn: dependsOn,
			Status:    TaskPending,
		}); err != nil {
			return nil, err
		}
	}

	if _, err := dag.Validate(); err != nil {
		return nil, err
	}
	return dag, nil
}
