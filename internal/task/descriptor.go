package task

import (
	"fmt"
	"regexp"
	"strings"
)

// StateColumn is the name of the single mutable column every type carries.
const StateColumn = "state"

// Names the store keeps for itself. A type's table holds NameColumn and
// UpdatedColumn next to its own columns, and RunsTable sits beside the
// per-type tables.
const (
	NameColumn    = "name"
	UpdatedColumn = "updated_at"
	RunsTable     = "task_runs"
)

// reservedPrefixes cannot start a type name: sqlite owns sqlite_ and the
// store names its indexes idx_.
var reservedPrefixes = []string{"sqlite_", "idx_"}

// ColumnType is the semantic type of a persisted column.
type ColumnType int

const (
	Integer ColumnType = iota
	Text
)

func (c ColumnType) String() string {
	switch c {
	case Integer:
		return "integer"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(c))
	}
}

// Column is one persisted column of a task type.
type Column struct {
	Name string
	Type ColumnType
}

// Format describes how one identity field is rendered inside a name.
// Width > 0 zero-pads integers to that width ("08d"); Width == 0 renders
// integers unpadded ("d"). Text fields are always rendered raw.
type Format struct {
	Width int
}

// Field is one identity field: a column plus its name format.
type Field struct {
	Name   string
	Type   ColumnType
	Format Format
}

// Dependency declares that a type needs the output of another type under a
// role name (e.g. "psf" -> "psfnight").
type Dependency struct {
	Role string
	Type string
}

// Descriptor is the static metadata of a task type.
type Descriptor struct {
	Type         string
	Columns      []Column
	Identity     []Field
	Dependencies []Dependency
}

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks the descriptor's internal consistency: a valid type name
// and column names the store does not reserve, exactly one integer state
// column, identity fields that are non-state columns of matching type, and
// unique roles.
func (d *Descriptor) Validate() error {
	if !identRe.MatchString(d.Type) {
		return fmt.Errorf("invalid type name %q", d.Type)
	}
	if d.Type == RunsTable {
		return fmt.Errorf("type name %q is reserved", d.Type)
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(d.Type, p) {
			return fmt.Errorf("type name %q uses reserved prefix %q", d.Type, p)
		}
	}

	cols := make(map[string]ColumnType, len(d.Columns))
	states := 0
	for _, c := range d.Columns {
		if !identRe.MatchString(c.Name) {
			return fmt.Errorf("type %s: invalid column name %q", d.Type, c.Name)
		}
		if c.Name == NameColumn || c.Name == UpdatedColumn {
			return fmt.Errorf("type %s: column name %q is reserved", d.Type, c.Name)
		}
		if _, dup := cols[c.Name]; dup {
			return fmt.Errorf("type %s: duplicate column %q", d.Type, c.Name)
		}
		cols[c.Name] = c.Type
		if c.Name == StateColumn {
			if c.Type != Integer {
				return fmt.Errorf("type %s: state column must be integer", d.Type)
			}
			states++
		}
	}
	if states != 1 {
		return fmt.Errorf("type %s: exactly one %q column required", d.Type, StateColumn)
	}

	if len(d.Identity) == 0 {
		return fmt.Errorf("type %s: no identity fields", d.Type)
	}
	seen := make(map[string]bool, len(d.Identity))
	for _, f := range d.Identity {
		if f.Name == StateColumn {
			return fmt.Errorf("type %s: state cannot be an identity field", d.Type)
		}
		ct, ok := cols[f.Name]
		if !ok {
			return fmt.Errorf("type %s: identity field %q is not a column", d.Type, f.Name)
		}
		if ct != f.Type {
			return fmt.Errorf("type %s: identity field %q is %s, column is %s", d.Type, f.Name, f.Type, ct)
		}
		if seen[f.Name] {
			return fmt.Errorf("type %s: identity field %q listed twice", d.Type, f.Name)
		}
		if f.Format.Width < 0 {
			return fmt.Errorf("type %s: identity field %q has negative width", d.Type, f.Name)
		}
		seen[f.Name] = true
	}

	roles := make(map[string]bool, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		if dep.Role == "" || dep.Role == OutputKey {
			return fmt.Errorf("type %s: invalid dependency role %q", d.Type, dep.Role)
		}
		if roles[dep.Role] {
			return fmt.Errorf("type %s: duplicate dependency role %q", d.Type, dep.Role)
		}
		roles[dep.Role] = true
	}
	return nil
}

// Field returns the identity field with the given name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Identity {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Encode renders fields into this type's task name.
func (d *Descriptor) Encode(f Fields) (string, error) {
	return Encode(f, d.Identity)
}

// Decode parses one of this type's task names.
func (d *Descriptor) Decode(name string) (Fields, error) {
	return Decode(name, d.Identity)
}
