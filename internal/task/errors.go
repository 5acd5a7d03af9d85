package task

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every typed error below unwraps to one of these so callers
// can use errors.Is without caring about the concrete struct.
var (
	ErrFormat        = errors.New("name format error")
	ErrParse         = errors.New("name parse error")
	ErrDuplicateType = errors.New("duplicate task type")
	ErrUnknownType   = errors.New("unknown task type")
	ErrMissingField  = errors.New("missing identity field")
)

// FormatError reports a field that cannot be encoded into a task name.
type FormatError struct {
	Field string
	Value any
	Msg   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: field %q (%v): %s", ErrFormat, e.Field, e.Value, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// ParseError reports a task name that cannot be decoded.
type ParseError struct {
	Name  string
	Field string // empty when the field count is wrong
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %q: %s", ErrParse, e.Name, e.Msg)
	}
	return fmt.Sprintf("%s: %q: field %q: %s", ErrParse, e.Name, e.Field, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// DuplicateTypeError is returned when a type name is registered twice.
type DuplicateTypeError struct {
	Type string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateType, e.Type)
}

func (e *DuplicateTypeError) Unwrap() error { return ErrDuplicateType }

// UnknownTypeError is returned by registry lookups for unregistered types.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownType, e.Type)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// MissingFieldError is returned when a dependency's identity needs a field
// the depending type does not carry.
type MissingFieldError struct {
	Type    string // the depending type
	DepType string // the dependency's type
	Role    string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s dependency %q (%s) needs field %q",
		ErrMissingField, e.Type, e.Role, e.DepType, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }
