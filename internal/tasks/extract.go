package tasks

import (
	"fmt"
	"strings"

	"github.com/aristath/pipetask/internal/task"
)

// Bands with a wavelength default.
var Bands = []string{"b", "r", "z"}

const (
	wavelengthKey    = "wavelength"
	wavelengthPrefix = "wavelength_"
)

// Extract extracts spectra from the preprocessed image of one camera.
type Extract struct {
	desc *task.Descriptor
}

// NewExtract creates the extract task type.
func NewExtract() *Extract {
	identity := []task.Field{fieldNight, fieldBand, fieldSpec, fieldExpID}
	return &Extract{desc: &task.Descriptor{
		Type:     TypeExtract,
		Columns:  columns(identity...),
		Identity: identity,
		Dependencies: []task.Dependency{
			{Role: "input", Type: TypePix},
			{Role: "fibermap", Type: TypeFibermap},
			{Role: "psf", Type: TypePSFNight},
		},
	}}
}

func (e *Extract) Descriptor() *task.Descriptor { return e.desc }

func (e *Extract) Paths(loc task.Locator, f task.Fields) ([]string, error) {
	attrs, err := exposureAttrs(f)
	if err != nil {
		return nil, err
	}
	path, err := loc.Locate("frame", attrs)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// RunMaxProcs is one worker per fiber bundle of a camera.
func (e *Extract) RunMaxProcs(int) int { return 20 }

func (e *Extract) RunTime(task.Fields, int) float64 { return 15 }

func (e *Extract) RunDefaults() task.OptionList {
	return task.OptionList{
		{Key: "regularize", Value: 0.0},
		{Key: "nwavestep", Value: 50},
		{Key: "verbose", Value: false},
		{Key: wavelengthPrefix + "b", Value: "3579.0,5939.0,0.8"},
		{Key: wavelengthPrefix + "r", Value: "5635.0,7731.0,0.8"},
		{Key: wavelengthPrefix + "z", Value: "7445.0,9824.0,0.8"},
	}
}

// extractSettings is the merged option set before the band is resolved.
type extractSettings struct {
	Input       string  `opt:"input"`
	Fibermap    string  `opt:"fibermap"`
	PSF         string  `opt:"psf"`
	Output      string  `opt:"output"`
	Regularize  float64 `opt:"regularize"`
	NWaveStep   int     `opt:"nwavestep"`
	Verbose     bool    `opt:"verbose"`
	Wavelength  string  `opt:"wavelength"`
	WavelengthB string  `opt:"wavelength_b"`
	WavelengthR string  `opt:"wavelength_r"`
	WavelengthZ string  `opt:"wavelength_z"`
}

func (s extractSettings) variant(band string) (string, bool) {
	switch band {
	case "b":
		return s.WavelengthB, s.WavelengthB != ""
	case "r":
		return s.WavelengthR, s.WavelengthR != ""
	case "z":
		return s.WavelengthZ, s.WavelengthZ != ""
	}
	return "", false
}

// ExtractOptions is the resolved configuration of one extraction: a single
// wavelength range for the task's band.
type ExtractOptions struct {
	Input      string
	Fibermap   string
	PSF        string
	Output     string
	Regularize float64
	NWaveStep  int
	Verbose    bool
	Wavelength string
}

func (o ExtractOptions) value(key string) (any, bool) {
	switch key {
	case "input":
		return o.Input, true
	case "fibermap":
		return o.Fibermap, true
	case "psf":
		return o.PSF, true
	case task.OutputKey:
		return o.Output, true
	case "regularize":
		return o.Regularize, true
	case "nwavestep":
		return o.NWaveStep, true
	case "verbose":
		return o.Verbose, true
	case wavelengthKey:
		return o.Wavelength, true
	}
	return nil, false
}

// Resolve selects the wavelength range for band. An explicit "wavelength"
// option wins over the per-band variants.
func (e *Extract) Resolve(band string, merged task.OptionList) (ExtractOptions, error) {
	var s extractSettings
	if _, err := task.DecodeOptions(merged, &s); err != nil {
		return ExtractOptions{}, err
	}

	wave := s.Wavelength
	if !merged.Has(wavelengthKey) {
		v, ok := s.variant(band)
		if !ok {
			return ExtractOptions{}, fmt.Errorf("no wavelength range for band %q", band)
		}
		wave = v
	}

	return ExtractOptions{
		Input:      s.Input,
		Fibermap:   s.Fibermap,
		PSF:        s.PSF,
		Output:     s.Output,
		Regularize: s.Regularize,
		NWaveStep:  s.NWaveStep,
		Verbose:    s.Verbose,
		Wavelength: wave,
	}, nil
}

// Collapse keeps a single "wavelength" option, placed where the first
// wavelength option appeared, and drops the per-band variants. Other
// wavelength_* keys pass through.
func (e *Extract) Collapse(f task.Fields, merged task.OptionList) (task.OptionList, error) {
	band, ok := f.String("band")
	if !ok {
		return nil, fmt.Errorf("missing band")
	}
	opts, err := e.Resolve(band, merged)
	if err != nil {
		return nil, err
	}

	out := make(task.OptionList, 0, len(merged))
	emitted := false
	for _, o := range merged {
		if o.Key == wavelengthKey || isBandVariant(o.Key) {
			if !emitted {
				out = append(out, task.Option{Key: wavelengthKey, Value: opts.Wavelength})
				emitted = true
			}
			continue
		}
		if v, ok := opts.value(o.Key); ok {
			out = append(out, task.Option{Key: o.Key, Value: v})
			continue
		}
		out = append(out, o)
	}
	if !emitted {
		out = append(out, task.Option{Key: wavelengthKey, Value: opts.Wavelength})
	}
	return out, nil
}

// isBandVariant reports whether key is wavelength_<band> for a known band.
func isBandVariant(key string) bool {
	band, ok := strings.CutPrefix(key, wavelengthPrefix)
	if !ok {
		return false
	}
	for _, b := range Bands {
		if b == band {
			return true
		}
	}
	return false
}

func (e *Extract) Entry() string { return "desi_extract_spectra" }
