package task

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
)

// Builder collects task types at start-up and produces an immutable Registry.
type Builder struct {
	kinds    map[string]Kind
	order    []string
	locator  Locator
	routines RoutineFactory
	err      error
}

// NewBuilder creates a builder. loc resolves file paths for every type;
// routines supplies the routine behind each type's entry.
func NewBuilder(loc Locator, routines RoutineFactory) *Builder {
	return &Builder{
		kinds:    make(map[string]Kind),
		locator:  loc,
		routines: routines,
	}
}

// Register adds a task type. Registering the same type name twice returns a
// *DuplicateTypeError; the error is also reported again by Build.
func (b *Builder) Register(k Kind) error {
	d := k.Descriptor()
	if _, exists := b.kinds[d.Type]; exists {
		err := &DuplicateTypeError{Type: d.Type}
		if b.err == nil {
			b.err = err
		}
		return err
	}
	b.kinds[d.Type] = k
	b.order = append(b.order, d.Type)
	return nil
}

// Build validates every registered type and its dependency declarations and
// returns the registry.
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.locator == nil {
		return nil, fmt.Errorf("registry needs a file locator")
	}

	for _, name := range b.order {
		if err := b.kinds[name].Descriptor().Validate(); err != nil {
			return nil, err
		}
	}

	for _, name := range b.order {
		d := b.kinds[name].Descriptor()
		for _, dep := range d.Dependencies {
			target, ok := b.kinds[dep.Type]
			if !ok {
				return nil, fmt.Errorf("type %s dependency %q: %w", d.Type, dep.Role, &UnknownTypeError{Type: dep.Type})
			}
			td := target.Descriptor()
			for _, tf := range td.Identity {
				own, ok := d.Field(tf.Name)
				if !ok {
					return nil, &MissingFieldError{Type: d.Type, DepType: td.Type, Role: dep.Role, Field: tf.Name}
				}
				if own.Type != tf.Type {
					return nil, fmt.Errorf("type %s dependency %q: field %q is %s here and %s in %s",
						d.Type, dep.Role, tf.Name, own.Type, tf.Type, td.Type)
				}
			}
		}
	}

	if _, err := b.typeOrder(); err != nil {
		return nil, err
	}

	r := &Registry{
		instances: make(map[string]*Instance, len(b.kinds)),
		locator:   b.locator,
		routines:  b.routines,
	}
	for name, k := range b.kinds {
		r.instances[name] = &Instance{kind: k, reg: r}
	}
	return r, nil
}

// typeOrder sorts types so that every type comes after its dependencies.
func (b *Builder) typeOrder() ([]string, error) {
	var edges []toposort.Edge
	for _, name := range b.order {
		d := b.kinds[name].Descriptor()
		if len(d.Dependencies) == 0 {
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, dep := range d.Dependencies {
			edges = append(edges, toposort.Edge{dep.Type, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task type graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// Registry maps type names to task instances. It is read-only after Build
// and safe for concurrent use.
type Registry struct {
	instances map[string]*Instance
	locator   Locator
	routines  RoutineFactory
}

// Get returns the instance registered under taskType.
func (r *Registry) Get(taskType string) (*Instance, error) {
	inst, ok := r.instances[taskType]
	if !ok {
		return nil, &UnknownTypeError{Type: taskType}
	}
	return inst, nil
}

// Types returns the registered type names in lexical order.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns every registered descriptor, ordered by type name.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.instances))
	for _, name := range r.Types() {
		out = append(out, r.instances[name].Descriptor())
	}
	return out
}
