package task

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// OutputKey is the option key that carries a task's own output path.
const OutputKey = "output"

// Option is a single key/value pair of a resolved option set.
type Option struct {
	Key   string
	Value any
}

// OptionList is an ordered option set. Keys are unique.
type OptionList []Option

// Get returns the value stored under key.
func (l OptionList) Get(key string) (any, bool) {
	for _, o := range l {
		if o.Key == key {
			return o.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (l OptionList) Has(key string) bool {
	_, ok := l.Get(key)
	return ok
}

// Set replaces the value of an existing key in place, or appends it.
func (l OptionList) Set(key string, value any) OptionList {
	for i := range l {
		if l[i].Key == key {
			l[i].Value = value
			return l
		}
	}
	return append(l, Option{Key: key, Value: value})
}

// Delete removes key, preserving the order of the remaining options.
func (l OptionList) Delete(key string) OptionList {
	out := l[:0:0]
	for _, o := range l {
		if o.Key != key {
			out = append(out, o)
		}
	}
	return out
}

// Keys returns the keys in order.
func (l OptionList) Keys() []string {
	keys := make([]string, len(l))
	for i, o := range l {
		keys[i] = o.Key
	}
	return keys
}

// Map returns the options as a plain map.
func (l OptionList) Map() map[string]any {
	m := make(map[string]any, len(l))
	for _, o := range l {
		m[o.Key] = o.Value
	}
	return m
}

// Clone returns a copy that shares no backing array with l.
func (l OptionList) Clone() OptionList {
	return append(OptionList(nil), l...)
}

// Args renders the list as command line flag tokens: "--key value" for
// ordinary values, a bare "--key" for true, and nothing for false or nil.
func (l OptionList) Args() []string {
	args := make([]string, 0, 2*len(l))
	for _, o := range l {
		flag := "--" + o.Key
		switch v := o.Value.(type) {
		case nil:
		case bool:
			if v {
				args = append(args, flag)
			}
		default:
			args = append(args, flag, FormatValue(v))
		}
	}
	return args
}

// FormatValue renders one option value as a single command line token.
// Slices are joined with commas.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case []string:
		return strings.Join(x, ",")
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ",")
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = formatFloat(f, 64)
		}
		return strings.Join(parts, ",")
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}

// formatFloat keeps a fractional part on whole numbers, so 0.0 stays "0.0".
func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

// Merge layers option sets. Later layers win on value; a key keeps the
// position of its first appearance. Overrides are applied last and keys not
// already present are appended in lexical order so the result is stable.
func Merge(overrides map[string]any, layers ...OptionList) OptionList {
	var out OptionList
	for _, layer := range layers {
		for _, o := range layer {
			out = out.Set(o.Key, o.Value)
		}
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = out.Set(k, overrides[k])
	}
	return out
}
