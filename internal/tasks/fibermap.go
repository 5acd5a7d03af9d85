package tasks

import (
	"github.com/aristath/pipetask/internal/task"
)

// Fibermap assembles the fiber assignment table of one exposure.
type Fibermap struct {
	desc *task.Descriptor
}

// NewFibermap creates the fibermap task type.
func NewFibermap() *Fibermap {
	identity := []task.Field{fieldNight, fieldExpID}
	return &Fibermap{desc: &task.Descriptor{
		Type:     TypeFibermap,
		Columns:  columns(identity...),
		Identity: identity,
	}}
}

func (m *Fibermap) Descriptor() *task.Descriptor { return m.desc }

func (m *Fibermap) Paths(loc task.Locator, f task.Fields) ([]string, error) {
	path, err := loc.Locate("fibermap", map[string]any{
		"night": f["night"],
		"expid": f["expid"],
	})
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (m *Fibermap) RunMaxProcs(int) int { return 1 }

func (m *Fibermap) RunTime(task.Fields, int) float64 { return 2 }

func (m *Fibermap) RunDefaults() task.OptionList {
	return task.OptionList{
		{Key: "overwrite", Value: false},
	}
}

func (m *Fibermap) Collapse(f task.Fields, merged task.OptionList) (task.OptionList, error) {
	return noCollapse(f, merged)
}

func (m *Fibermap) Entry() string { return "desi_assemble_fibermap" }
