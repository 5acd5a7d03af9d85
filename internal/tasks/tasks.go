// Package tasks holds the concrete task types of the spectroscopic pipeline:
// raw preprocessing (pix), fibermap assembly, nightly PSF, and extraction.
package tasks

import (
	"fmt"

	"github.com/aristath/pipetask/internal/task"
)

// Type names.
const (
	TypePix      = "pix"
	TypeFibermap = "fibermap"
	TypePSFNight = "psfnight"
	TypeExtract  = "extract"
)

// Identity fields shared across types. A field used by several types must
// have the same semantic type everywhere; formats may differ.
var (
	fieldNight = task.Field{Name: "night", Type: task.Integer, Format: task.Format{Width: 8}}
	fieldBand  = task.Field{Name: "band", Type: task.Text}
	fieldSpec  = task.Field{Name: "spec", Type: task.Integer}
	fieldExpID = task.Field{Name: "expid", Type: task.Integer, Format: task.Format{Width: 8}}
)

// All returns one instance of every task type, ready for registration.
func All() []task.Kind {
	return []task.Kind{
		NewPix(),
		NewFibermap(),
		NewPSFNight(),
		NewExtract(),
	}
}

// Register adds every task type to b.
func Register(b *task.Builder) error {
	for _, k := range All() {
		if err := b.Register(k); err != nil {
			return err
		}
	}
	return nil
}

// columns derives the persisted columns from the identity fields and appends
// the state column.
func columns(identity ...task.Field) []task.Column {
	cols := make([]task.Column, 0, len(identity)+1)
	for _, f := range identity {
		cols = append(cols, task.Column{Name: f.Name, Type: f.Type})
	}
	return append(cols, task.Column{Name: task.StateColumn, Type: task.Integer})
}

// camera builds the composite camera key, e.g. band "r" + spec 3 -> "r3".
func camera(f task.Fields) (string, error) {
	band, ok := f.String("band")
	if !ok {
		return "", fmt.Errorf("missing band")
	}
	spec, ok := f.Int("spec")
	if !ok {
		return "", fmt.Errorf("missing spec")
	}
	return fmt.Sprintf("%s%d", band, spec), nil
}

// exposureAttrs returns the locator attributes of a per-camera exposure.
func exposureAttrs(f task.Fields) (map[string]any, error) {
	cam, err := camera(f)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"night":        f["night"],
		"expid":        f["expid"],
		"camera":       cam,
		"band":         f["band"],
		"spectrograph": f["spec"],
	}, nil
}

// noCollapse is the Collapse of types without discriminant options.
func noCollapse(_ task.Fields, merged task.OptionList) (task.OptionList, error) {
	return merged, nil
}
