package tasks

import (
	"github.com/aristath/pipetask/internal/task"
)

// Pix preprocesses the raw image of one camera of one exposure.
type Pix struct {
	desc *task.Descriptor
}

// NewPix creates the pix task type.
func NewPix() *Pix {
	identity := []task.Field{fieldNight, fieldBand, fieldSpec, fieldExpID}
	return &Pix{desc: &task.Descriptor{
		Type:     TypePix,
		Columns:  columns(identity...),
		Identity: identity,
	}}
}

func (p *Pix) Descriptor() *task.Descriptor { return p.desc }

func (p *Pix) Paths(loc task.Locator, f task.Fields) ([]string, error) {
	attrs, err := exposureAttrs(f)
	if err != nil {
		return nil, err
	}
	path, err := loc.Locate("preproc", attrs)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (p *Pix) RunMaxProcs(int) int { return 1 }

func (p *Pix) RunTime(task.Fields, int) float64 { return 2 }

func (p *Pix) RunDefaults() task.OptionList {
	return task.OptionList{
		{Key: "nocosmic", Value: false},
		{Key: "cosmics-nsig", Value: 6.0},
	}
}

func (p *Pix) Collapse(f task.Fields, merged task.OptionList) (task.OptionList, error) {
	return noCollapse(f, merged)
}

func (p *Pix) Entry() string { return "desi_preproc" }
