package task

import (
	"context"
	"fmt"
	"strings"
)

// Dep is one resolved dependency of a task.
type Dep struct {
	Role string
	Type string
	Name string
}

// DepMap holds a task's resolved dependencies in declared role order.
type DepMap []Dep

// Get returns the dependency for role.
func (m DepMap) Get(role string) (Dep, bool) {
	for _, d := range m {
		if d.Role == role {
			return d, true
		}
	}
	return Dep{}, false
}

// Instance is the full per-type task contract, backed by a Kind and the
// registry it was built in.
type Instance struct {
	kind Kind
	reg  *Registry
}

// Type returns the type name.
func (t *Instance) Type() string { return t.kind.Descriptor().Type }

// Descriptor returns the type's static metadata.
func (t *Instance) Descriptor() *Descriptor { return t.kind.Descriptor() }

// Entry returns the type's executable or routine identifier.
func (t *Instance) Entry() string { return t.kind.Entry() }

// Split decodes a task name of this type.
func (t *Instance) Split(name string) (Fields, error) {
	return t.kind.Descriptor().Decode(name)
}

// Join encodes fields into a task name of this type.
func (t *Instance) Join(f Fields) (string, error) {
	return t.kind.Descriptor().Encode(f)
}

// Paths returns the output file paths of the named task.
func (t *Instance) Paths(name string) ([]string, error) {
	f, err := t.Split(name)
	if err != nil {
		return nil, err
	}
	paths, err := t.kind.Paths(t.reg.locator, f)
	if err != nil {
		return nil, fmt.Errorf("%s %s: locating outputs: %w", t.Type(), name, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s %s: no output paths", t.Type(), name)
	}
	return paths, nil
}

// Deps resolves the names of the tasks this one depends on.
func (t *Instance) Deps(name string) (DepMap, error) {
	f, err := t.Split(name)
	if err != nil {
		return nil, err
	}

	d := t.kind.Descriptor()
	deps := make(DepMap, 0, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		target, err := t.reg.Get(dep.Type)
		if err != nil {
			return nil, err
		}
		td := target.Descriptor()
		df, err := Project(f, d, dep, td)
		if err != nil {
			return nil, err
		}
		depName, err := td.Encode(df)
		if err != nil {
			return nil, fmt.Errorf("%s %s: dependency %q: %w", t.Type(), name, dep.Role, err)
		}
		deps = append(deps, Dep{Role: dep.Role, Type: dep.Type, Name: depName})
	}
	return deps, nil
}

// RunMaxProcs returns the maximum number of workers one task can use. The
// result is never below 1.
func (t *Instance) RunMaxProcs(procsPerNode int) int {
	if n := t.kind.RunMaxProcs(procsPerNode); n > 1 {
		return n
	}
	return 1
}

// RunTime estimates the task's wall-clock time in minutes. Recorded history
// from db is preferred when present; any failure falls back to the static
// estimate.
func (t *Instance) RunTime(ctx context.Context, name string, procsPerNode int, db History) float64 {
	if db != nil {
		if m, ok, err := db.RunTime(ctx, t.Type(), name); err == nil && ok && m > 0 {
			return m
		}
	}
	f, err := t.Split(name)
	if err != nil {
		f = Fields{}
	}
	if m := t.kind.RunTime(f, procsPerNode); m > 0 {
		return m
	}
	return 1
}

// RunDefaults returns the type's default options.
func (t *Instance) RunDefaults() OptionList {
	return t.kind.RunDefaults()
}

// BuildOptions assembles the full option list of the named task. See
// Assemble for precedence and ordering.
func (t *Instance) BuildOptions(name string, overrides map[string]any) (OptionList, error) {
	f, err := t.Split(name)
	if err != nil {
		return nil, err
	}
	deps, err := t.Deps(name)
	if err != nil {
		return nil, err
	}

	inputs := make(OptionList, 0, len(deps))
	for _, dep := range deps {
		target, err := t.reg.Get(dep.Type)
		if err != nil {
			return nil, err
		}
		paths, err := target.Paths(dep.Name)
		if err != nil {
			return nil, fmt.Errorf("%s %s: input %q: %w", t.Type(), name, dep.Role, err)
		}
		inputs = append(inputs, Option{Key: dep.Role, Value: paths[0]})
	}

	outputs, err := t.Paths(name)
	if err != nil {
		return nil, err
	}

	merged := Assemble(t.kind.RunDefaults(), inputs, outputs[0], overrides)
	opts, err := t.kind.Collapse(f, merged)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", t.Type(), name, err)
	}
	return opts, nil
}

// Args returns the flag tokens for the named task.
func (t *Instance) Args(name string, overrides map[string]any) ([]string, error) {
	opts, err := t.BuildOptions(name, overrides)
	if err != nil {
		return nil, err
	}
	return opts.Args(), nil
}

// RunCommandLine renders the command that runs the named task as an external
// process: "<entry> <flags...>". procs does not change the rendered line;
// launching across workers is the launcher's concern.
func (t *Instance) RunCommandLine(name string, overrides map[string]any, procs int) (string, error) {
	args, err := t.Args(name, overrides)
	if err != nil {
		return "", err
	}
	return strings.Join(append([]string{t.Entry()}, args...), " "), nil
}

// Run executes the named task through the type's routine. It blocks until
// the routine returns and performs no retry.
func (t *Instance) Run(ctx context.Context, name string, overrides map[string]any, exec Execution) error {
	args, err := t.Args(name, overrides)
	if err != nil {
		return err
	}
	if t.reg.routines == nil {
		return fmt.Errorf("%s %s: no routine factory configured", t.Type(), name)
	}
	r, err := t.reg.routines(t.Type(), t.Entry())
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.Type(), name, err)
	}
	return Dispatch(ctx, r, args, exec)
}
