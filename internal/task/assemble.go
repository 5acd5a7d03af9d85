package task

// Assemble merges the layers of a task's option set. Precedence, lowest to
// highest: defaults, dependency inputs, output, overrides.
//
// Order: inputs in declared role order, then OutputKey, then the remaining
// default keys in default order, then override keys absent from all other
// layers in lexical order. An override never loses its key, even when no
// default declares it.
func Assemble(defaults, inputs OptionList, output string, overrides map[string]any) OptionList {
	out := make(OptionList, 0, len(inputs)+1+len(defaults)+len(overrides))
	for _, in := range inputs {
		out = out.Set(in.Key, in.Value)
	}
	out = out.Set(OutputKey, output)
	for _, d := range defaults {
		if !out.Has(d.Key) {
			out = append(out, d)
		}
	}
	return Merge(overrides, out)
}
