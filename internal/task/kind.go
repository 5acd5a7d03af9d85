package task

import "context"

// Locator maps logical file attributes to physical paths.
type Locator interface {
	Locate(filetype string, attrs map[string]any) (string, error)
}

// History gives read access to recorded task timings. ok is false when there
// is no record for the task or its type.
type History interface {
	RunTime(ctx context.Context, taskType, name string) (minutes float64, ok bool, err error)
}

// Kind is implemented once per task type. The generic contract in Instance
// is built on top of it.
type Kind interface {
	// Descriptor returns the type's static metadata. It must return the same
	// value on every call.
	Descriptor() *Descriptor

	// Paths returns the output paths of the task with the given fields.
	Paths(loc Locator, f Fields) ([]string, error)

	// RunMaxProcs bounds the number of workers one task can use.
	RunMaxProcs(procsPerNode int) int

	// RunTime is the static wall-clock estimate in minutes.
	RunTime(f Fields, procsPerNode int) float64

	// RunDefaults returns a fresh copy of the type's default options,
	// including every discriminant variant.
	RunDefaults() OptionList

	// Collapse resolves discriminant variants in merged so that exactly one
	// value survives for each logical option.
	Collapse(f Fields, merged OptionList) (OptionList, error)

	// Entry is the executable or routine identifier.
	Entry() string
}
