package schema

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Common schema validation errors
var (
	// ErrValidation is matched by every InvalidDataError.
	ErrValidation = errors.New("data does not conform to JSON schema")

	// ErrEncode is returned when a value cannot be encoded as JSON before validation.
	ErrEncode = errors.New("unable to encode value as JSON")

	// ErrDecode is returned when text passed for validation is not valid JSON.
	ErrDecode = errors.New("unable to decode JSON text")

	// ErrUnknownDefinition is returned when a definition name is not declared in the schema document.
	ErrUnknownDefinition = errors.New("unknown schema definition")

	// ErrInvalidSchema is returned when the schema document itself cannot be parsed or compiled.
	ErrInvalidSchema = errors.New("invalid JSON schema document")
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	// Field is the dotted path of the offending property, e.g. "billing_address.city" or "items.0.quantity".
	Field string `json:"property"`

	// Constraint is the name of the violated constraint, e.g. "required", "enum", "invalid_type".
	Constraint string `json:"constraint"`

	// Message is a human readable description of the violation.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (%s): %s", e.Field, e.Constraint, e.Message)
}

// InvalidDataError is returned when data fails validation. It carries every violation, in the order
// the validator reported them.
type InvalidDataError struct {
	// Definition is the schema definition the data was validated against. Empty for the root schema.
	Definition string

	// Errors is the ordered list of violations.
	Errors []ValidationError
}

// Error implements the error interface.
func (e *InvalidDataError) Error() string {
	var b strings.Builder
	b.WriteString("Data does not conform to JSON schema")
	if e.Definition != "" {
		fmt.Fprintf(&b, " definition '%s'", e.Definition)
	}
	b.WriteString(". Validation failed with the following errors:")
	for _, ve := range e.Errors {
		fmt.Fprintf(&b, "\n\n * Property: %s\n * Constraint: %s\n * Message: %s", ve.Field, ve.Constraint, ve.Message)
	}
	return b.String()
}

// Is reports whether target is ErrValidation.
func (e *InvalidDataError) Is(target error) bool {
	return target == ErrValidation
}

// NewInvalidDataError creates an InvalidDataError. The error slice is copied.
func NewInvalidDataError(definition string, errs []ValidationError) *InvalidDataError {
	return &InvalidDataError{
		Definition: definition,
		Errors:     append([]ValidationError(nil), errs...),
	}
}

// ValidationErrors extracts the violation list from err, if err wraps an InvalidDataError.
func ValidationErrors(err error) ([]ValidationError, bool) {
	var invalid *InvalidDataError
	if errors.As(err, &invalid) {
		return invalid.Errors, true
	}
	return nil, false
}
