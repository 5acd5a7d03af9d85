package tasks

import (
	"github.com/aristath/pipetask/internal/task"
)

// PSFNight combines the PSF fits of one camera over a night.
type PSFNight struct {
	desc *task.Descriptor
}

// NewPSFNight creates the psfnight task type.
func NewPSFNight() *PSFNight {
	identity := []task.Field{fieldNight, fieldBand, fieldSpec}
	return &PSFNight{desc: &task.Descriptor{
		Type:     TypePSFNight,
		Columns:  columns(identity...),
		Identity: identity,
	}}
}

func (p *PSFNight) Descriptor() *task.Descriptor { return p.desc }

func (p *PSFNight) Paths(loc task.Locator, f task.Fields) ([]string, error) {
	cam, err := camera(f)
	if err != nil {
		return nil, err
	}
	path, err := loc.Locate("psfnight", map[string]any{
		"night":        f["night"],
		"camera":       cam,
		"band":         f["band"],
		"spectrograph": f["spec"],
	})
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (p *PSFNight) RunMaxProcs(int) int { return 1 }

func (p *PSFNight) RunTime(task.Fields, int) float64 { return 3 }

func (p *PSFNight) RunDefaults() task.OptionList { return task.OptionList{} }

func (p *PSFNight) Collapse(f task.Fields, merged task.OptionList) (task.OptionList, error) {
	return noCollapse(f, merged)
}

func (p *PSFNight) Entry() string { return "desi_compute_psf_nightly" }
