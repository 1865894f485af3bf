package models

import (
	"github.com/cockroachdb/errors"
)

// Record accessor errors. These indicate programming mistakes and are never logged.
var (
	// ErrUnknownField is returned when a field name is not declared for the record type.
	ErrUnknownField = errors.New("unknown field")

	// ErrTypeMismatch is returned when a value's runtime type does not match the declared field type.
	ErrTypeMismatch = errors.New("field type mismatch")
)

// FieldType is the declared type of a record field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
)

// Checker validates structured data against a named schema definition. *schema.Validator
// implements it.
type Checker interface {
	Check(value any, definition string) error
	CheckText(text []byte, definition string) error
}

// field declares one record field and where its value is stored. ref returns a **string or
// **int64 pointing at the struct field; alloc reports whether a missing parent may be created.
type field[T any] struct {
	name string
	kind FieldType
	ref  func(r *T, alloc bool) any
}

func lookupField[T any](fields []field[T], name string) (field[T], error) {
	for _, f := range fields {
		if f.name == name {
			return f, nil
		}
	}
	return field[T]{}, errors.Wrapf(ErrUnknownField, "%q", name)
}

func fieldTypes[T any](fields []field[T]) map[string]FieldType {
	types := make(map[string]FieldType, len(fields))
	for _, f := range fields {
		types[f.name] = f.kind
	}
	return types
}

func getField[T any](r *T, fields []field[T], name string) (any, bool, error) {
	f, err := lookupField(fields, name)
	if err != nil {
		return nil, false, err
	}
	v, ok := deref(f.ref(r, false))
	return v, ok, nil
}

func setField[T any](r *T, fields []field[T], name string, value any) error {
	f, err := lookupField(fields, name)
	if err != nil {
		return err
	}

	switch f.kind {
	case FieldTypeString:
		s, ok := value.(string)
		if !ok {
			return typeMismatch(f.name, f.kind, value)
		}
		*(f.ref(r, true).(**string)) = &s
	case FieldTypeInteger:
		n, ok := toInt64(value)
		if !ok {
			return typeMismatch(f.name, f.kind, value)
		}
		*(f.ref(r, true).(**int64)) = &n
	}
	return nil
}

// collect writes every set field into data under its field name.
func collect[T any](r *T, fields []field[T], data map[string]any) {
	for _, f := range fields {
		if v, ok := deref(f.ref(r, false)); ok {
			data[f.name] = v
		}
	}
}

func deref(ref any) (any, bool) {
	switch p := ref.(type) {
	case **string:
		if p == nil || *p == nil {
			return nil, false
		}
		return **p, true
	case **int64:
		if p == nil || *p == nil {
			return nil, false
		}
		return **p, true
	}
	return nil, false
}

// toInt64 accepts Go's signed and unsigned integer types. Floats and numeric strings are rejected.
func toInt64(value any) (int64, bool) {
	switch n := value.(type) {
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

func typeMismatch(name string, want FieldType, value any) error {
	return errors.Wrapf(ErrTypeMismatch, "field %q expects %s, %T found", name, want, value)
}
