package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// behavioralEventSchema accepts the flat event envelope posted to
// /api/v1/events. Arbitrary extra fields are allowed; only the shape of the
// well-known ones is pinned down.
const behavioralEventSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"type": "string", "minLength": 1, "maxLength": 64},
		"track_id": {"type": "string", "minLength": 1},
		"listener_id": {"type": "string"},
		"context_id": {"type": "string"},
		"source": {"type": "string"}
	},
	"additionalProperties": true
}`

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// SchemaValidator validates request payloads against compiled JSON schemas.
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaValidator compiles the built-in schemas. Compilation of a
// constant schema only fails on a programming error, hence the panic.
func NewSchemaValidator() *SchemaValidator {
	sources := map[string]string{
		"behavioral-event": behavioralEventSchema,
	}

	sv := &SchemaValidator{schemas: make(map[string]*gojsonschema.Schema, len(sources))}
	for name, source := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
		if err != nil {
			panic(fmt.Sprintf("invalid built-in schema %q: %v", name, err))
		}
		sv.schemas[name] = schema
	}
	return sv
}

// ValidateEvent checks a behavioral event envelope.
func (sv *SchemaValidator) ValidateEvent(data interface{}) *ValidationResult {
	return sv.validate("behavioral-event", data)
}

func (sv *SchemaValidator) validate(schemaName string, data interface{}) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "schema",
				Message: fmt.Sprintf("schema %q not found", schemaName),
			}},
		}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "payload",
				Message: err.Error(),
			}},
		}
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errors := make([]ValidationError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errors = append(errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
		})
	}
	return &ValidationResult{Valid: false, Errors: errors}
}
