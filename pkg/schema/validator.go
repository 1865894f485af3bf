// Package schema validates invoice data against the invoice JSON Schema document.
//
// The document declares the full invoice at its root plus two named definitions that can be
// validated on their own:
//   - "billing_address": the nested billing address object
//   - "line_item": a single invoice line item
//
// Compiling a schema is comparatively expensive, so a Validator compiles each definition lazily on
// first use and keeps the compiled schema together with the result of the most recent validation
// performed against it. Errors are therefore scoped per definition: Errors("line_item") returns
// the violations from the last "line_item" validation only.
package schema

import (
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"invoicequeue/internal/logger"
)

// Named definitions within the invoice schema document.
const (
	// DefinitionRoot validates a complete invoice.
	DefinitionRoot = ""

	// DefinitionBillingAddress validates a billing address object.
	DefinitionBillingAddress = "billing_address"

	// DefinitionLineItem validates a single line item.
	DefinitionLineItem = "line_item"
)

// rootContext is the field path gojsonschema reports for the document root.
const rootContext = "(root)"

//go:embed invoice_schema.json
var invoiceSchema []byte

// compiledDefinition is the cached state for one definition.
type compiledDefinition struct {
	schema *gojsonschema.Schema
	last   *gojsonschema.Result
}

// Validator validates structured values and JSON text against a JSON Schema document.
//
// A Validator is safe for concurrent use. Callers that validate with Validate or ValidateText and
// then read Errors should prefer Check or CheckText, which do both under a single lock.
type Validator struct {
	mu          sync.Mutex
	document    map[string]any
	definitions map[string]any
	compiled    map[string]*compiledDefinition
	log         zerolog.Logger
}

// NewValidator creates a Validator for the embedded invoice schema.
func NewValidator() (*Validator, error) {
	return NewValidatorFromJSON(invoiceSchema)
}

// MustNewValidator is like NewValidator but panics if the embedded schema cannot be parsed.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// NewValidatorFromJSON creates a Validator for the given schema document.
func NewValidatorFromJSON(document []byte) (*Validator, error) {
	var doc map[string]any
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse schema document"), ErrInvalidSchema)
	}

	definitions, _ := doc["definitions"].(map[string]any)

	return &Validator{
		document:    doc,
		definitions: definitions,
		compiled:    make(map[string]*compiledDefinition),
		log:         logger.WithComponent("schema-validator"),
	}, nil
}

// Validate validates value against definition. An empty definition validates against the root
// schema. A value that fails the schema is a normal false return; the error is reserved for values
// that cannot be encoded (ErrEncode) and unknown definitions (ErrUnknownDefinition).
func (v *Validator) Validate(value any, definition string) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, errors.Mark(errors.Wrap(err, "validate"), ErrEncode)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	return v.validateLocked(data, definition)
}

// ValidateText parses text as JSON and validates it against definition. Text that is not valid JSON
// returns ErrDecode.
func (v *Validator) ValidateText(text []byte, definition string) (bool, error) {
	if !json.Valid(text) {
		return false, errors.Wrap(ErrDecode, "validate text")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	return v.validateLocked(text, definition)
}

// Errors returns the violations found by the most recent validation against definition. It returns
// nil if the definition has not been validated yet or the last validation passed.
func (v *Validator) Errors(definition string) []ValidationError {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.errorsLocked(definition)
}

// Check validates value against definition and returns an *InvalidDataError carrying every
// violation when validation fails.
func (v *Validator) Check(value any, definition string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "check"), ErrEncode)
	}
	return v.check(data, definition)
}

// CheckText is the text form of Check.
func (v *Validator) CheckText(text []byte, definition string) error {
	if !json.Valid(text) {
		return errors.Wrap(ErrDecode, "check text")
	}
	return v.check(text, definition)
}

func (v *Validator) check(data []byte, definition string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	ok, err := v.validateLocked(data, definition)
	if err != nil {
		return err
	}
	if !ok {
		return NewInvalidDataError(definition, v.errorsLocked(definition))
	}
	return nil
}

func (v *Validator) validateLocked(data []byte, definition string) (bool, error) {
	cd, err := v.compiledLocked(definition)
	if err != nil {
		return false, err
	}

	result, err := cd.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return false, errors.Mark(errors.Wrapf(err, "validate against definition %q", definition), ErrDecode)
	}
	cd.last = result

	return result.Valid(), nil
}

func (v *Validator) errorsLocked(definition string) []ValidationError {
	cd, ok := v.compiled[definition]
	if !ok || cd.last == nil || cd.last.Valid() {
		return nil
	}

	resultErrors := cd.last.Errors()
	errs := make([]ValidationError, 0, len(resultErrors))
	for _, re := range resultErrors {
		errs = append(errs, toValidationError(re))
	}
	return errs
}

// compiledLocked returns the cached compiled schema for definition, compiling it on first use.
func (v *Validator) compiledLocked(definition string) (*compiledDefinition, error) {
	if cd, ok := v.compiled[definition]; ok {
		return cd, nil
	}

	doc := v.document
	if definition != DefinitionRoot {
		if _, ok := v.definitions[definition]; !ok {
			return nil, errors.Wrapf(ErrUnknownDefinition, "definition %q", definition)
		}
		// A reference into the full document keeps nested $refs between definitions resolvable.
		doc = map[string]any{
			"definitions": v.definitions,
			"$ref":        "#/definitions/" + definition,
		}
		if draft, ok := v.document["$schema"]; ok {
			doc["$schema"] = draft
		}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "compile definition %q", definition), ErrInvalidSchema)
	}

	v.log.Debug().
		Str("definition", definition).
		Msg("Compiled schema definition")

	cd := &compiledDefinition{schema: compiled}
	v.compiled[definition] = cd
	return cd, nil
}

// toValidationError converts a gojsonschema result error. Required and additional-property
// violations are reported against the offending property rather than its parent object.
func toValidationError(re gojsonschema.ResultError) ValidationError {
	field := re.Field()
	if re.Type() == "required" || re.Type() == "additional_property_not_allowed" {
		if prop, ok := re.Details()["property"].(string); ok && prop != "" {
			if field == rootContext || field == "" {
				field = prop
			} else {
				field = field + "." + prop
			}
		}
	}

	return ValidationError{
		Field:      field,
		Constraint: re.Type(),
		Message:    re.Description(),
	}
}
