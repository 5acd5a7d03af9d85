package task

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator joins identity values inside a task name.
const Separator = "_"

// Fields holds decoded identity values keyed by field name. Integer fields
// hold int64, text fields hold string.
type Fields map[string]any

// Int returns an integer field, accepting any Go integer type.
func (f Fields) Int(name string) (int64, bool) {
	return toInt64(f[name])
}

// String returns a text field.
func (f Fields) String(name string) (string, bool) {
	s, ok := f[name].(string)
	return s, ok
}

// Encode formats each identity field of f and joins them with Separator in
// declared order. Fields in f that are not identity fields are ignored.
func Encode(f Fields, identity []Field) (string, error) {
	parts := make([]string, len(identity))
	for i, field := range identity {
		v, ok := f[field.Name]
		if !ok {
			return "", &FormatError{Field: field.Name, Msg: "missing"}
		}
		s, err := formatValue(field, v)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, Separator), nil
}

// Decode splits name on Separator and parses each part back into its
// semantic type. It is the exact inverse of Encode.
func Decode(name string, identity []Field) (Fields, error) {
	parts := strings.Split(name, Separator)
	if len(parts) != len(identity) {
		return nil, &ParseError{
			Name: name,
			Msg:  fmt.Sprintf("expected %d fields, got %d", len(identity), len(parts)),
		}
	}

	f := make(Fields, len(identity))
	for i, field := range identity {
		p := parts[i]
		switch field.Type {
		case Integer:
			n, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return nil, &ParseError{Name: name, Field: field.Name, Msg: "not an integer"}
			}
			// Reject representations Encode would never produce, so that
			// Encode(Decode(name)) == name as well.
			if formatInt(n, field.Format) != p {
				return nil, &ParseError{Name: name, Field: field.Name, Msg: "non-canonical integer"}
			}
			f[field.Name] = n
		case Text:
			if p == "" {
				return nil, &ParseError{Name: name, Field: field.Name, Msg: "empty"}
			}
			f[field.Name] = p
		default:
			return nil, &ParseError{Name: name, Field: field.Name, Msg: fmt.Sprintf("unsupported type %s", field.Type)}
		}
	}
	return f, nil
}

func formatValue(field Field, v any) (string, error) {
	switch field.Type {
	case Integer:
		n, ok := toInt64(v)
		if !ok {
			return "", &FormatError{Field: field.Name, Value: v, Msg: "not an integer"}
		}
		return formatInt(n, field.Format), nil
	case Text:
		s, ok := v.(string)
		if !ok {
			return "", &FormatError{Field: field.Name, Value: v, Msg: "not text"}
		}
		if s == "" {
			return "", &FormatError{Field: field.Name, Value: v, Msg: "empty"}
		}
		if strings.Contains(s, Separator) {
			return "", &FormatError{Field: field.Name, Value: v, Msg: "contains separator " + strconv.Quote(Separator)}
		}
		return s, nil
	}
	return "", &FormatError{Field: field.Name, Value: v, Msg: fmt.Sprintf("unsupported type %s", field.Type)}
}

func formatInt(n int64, f Format) string {
	if f.Width > 0 {
		return fmt.Sprintf("%0*d", f.Width, n)
	}
	return strconv.FormatInt(n, 10)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

// Project builds a dependency's fields from the depending type's fields: each
// identity field of target is copied by value from f. The value is
// re-rendered under the target's own format when encoded.
func Project(f Fields, from *Descriptor, dep Dependency, target *Descriptor) (Fields, error) {
	out := make(Fields, len(target.Identity))
	for _, tf := range target.Identity {
		if _, ok := from.Field(tf.Name); !ok {
			return nil, &MissingFieldError{Type: from.Type, DepType: target.Type, Role: dep.Role, Field: tf.Name}
		}
		v, ok := f[tf.Name]
		if !ok {
			return nil, &MissingFieldError{Type: from.Type, DepType: target.Type, Role: dep.Role, Field: tf.Name}
		}
		out[tf.Name] = v
	}
	return out, nil
}
