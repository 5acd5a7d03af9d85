package task

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// fakeKind is a configurable Kind for registry and instance tests.
type fakeKind struct {
	desc     *Descriptor
	filetype string
	maxProcs int
	runtime  float64
	defaults OptionList
	collapse func(Fields, OptionList) (OptionList, error)
}

func (k *fakeKind) Descriptor() *Descriptor { return k.desc }

func (k *fakeKind) Paths(loc Locator, f Fields) ([]string, error) {
	attrs := make(map[string]any, len(f))
	for name, v := range f {
		attrs[name] = v
	}
	p, err := loc.Locate(k.filetype, attrs)
	if err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func (k *fakeKind) RunMaxProcs(int) int { return k.maxProcs }

func (k *fakeKind) RunTime(Fields, int) float64 { return k.runtime }

func (k *fakeKind) RunDefaults() OptionList { return k.defaults.Clone() }

func (k *fakeKind) Entry() string { return "run_" + k.desc.Type }

func (k *fakeKind) Collapse(f Fields, merged OptionList) (OptionList, error) {
	if k.collapse != nil {
		return k.collapse(f, merged)
	}
	return merged, nil
}

// pathLocator renders "<filetype>/<attr=value,...>" with attrs sorted.
type pathLocator struct{}

func (pathLocator) Locate(filetype string, attrs map[string]any) (string, error) {
	if filetype == "" {
		return "", fmt.Errorf("no filetype")
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, attrs[k])
	}
	return filetype + "/" + strings.Join(parts, ","), nil
}

var (
	tNight = Field{Name: "night", Type: Integer, Format: Format{Width: 8}}
	tBand  = Field{Name: "band", Type: Text}
	tSpec  = Field{Name: "spec", Type: Integer}
	tExpID = Field{Name: "expid", Type: Integer, Format: Format{Width: 8}}
)

func descriptor(typ string, deps []Dependency, identity ...Field) *Descriptor {
	cols := make([]Column, 0, len(identity)+1)
	for _, f := range identity {
		cols = append(cols, Column{Name: f.Name, Type: f.Type})
	}
	cols = append(cols, Column{Name: StateColumn, Type: Integer})
	// Copy so callers passing a shared slice (e.g. frameIdentity...) are not
	// mutated by tests that edit d.Identity in place.
	identity = append([]Field(nil), identity...)
	return &Descriptor{Type: typ, Columns: cols, Identity: identity, Dependencies: deps}
}

// pipelineKinds mirrors the shape of the real pipeline: a frame type with
// three dependencies that share its identity fields.
func pipelineKinds() []Kind {
	return []Kind{
		&fakeKind{desc: descriptor("raw", nil, tNight, tBand, tSpec, tExpID), filetype: "raw", maxProcs: 1, runtime: 2},
		&fakeKind{desc: descriptor("meta", nil, tNight, tExpID), filetype: "meta", maxProcs: 1},
		&fakeKind{desc: descriptor("calib", nil, tNight, tBand, tSpec), filetype: "calib"},
		&fakeKind{
			desc: descriptor("frame", []Dependency{
				{Role: "input", Type: "raw"},
				{Role: "meta", Type: "meta"},
				{Role: "psf", Type: "calib"},
			}, tNight, tBand, tSpec, tExpID),
			filetype: "frame",
			maxProcs: 20,
			runtime:  15,
			defaults: OptionList{{Key: "nstep", Value: 50}, {Key: "verbose", Value: false}},
		},
	}
}

type fakeHistory struct {
	minutes float64
	ok      bool
	err     error
}

func (h fakeHistory) RunTime(context.Context, string, string) (float64, bool, error) {
	return h.minutes, h.ok, h.err
}
