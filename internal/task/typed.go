package task

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeOptions decodes an option list into a typed config struct whose
// fields carry `opt:"key"` tags. String values are converted to the field
// type, so overrides given on a command line decode cleanly. It returns the
// keys that no struct field consumed, in list order.
func DecodeOptions(l OptionList, out any) ([]string, error) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "opt",
		WeaklyTypedInput: true,
		Metadata:         &md,
	})
	if err != nil {
		return nil, fmt.Errorf("creating option decoder: %w", err)
	}
	if err := dec.Decode(l.Map()); err != nil {
		return nil, fmt.Errorf("decoding options: %w", err)
	}

	unused := make(map[string]bool, len(md.Unused))
	for _, k := range md.Unused {
		unused[k] = true
	}
	var rest []string
	for _, k := range l.Keys() {
		if unused[k] {
			rest = append(rest, k)
		}
	}
	return rest, nil
}
