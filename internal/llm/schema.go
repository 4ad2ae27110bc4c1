package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	decimalPattern = `^(\d+(\.\d{1,2})?)?$`
	visitsPattern  = `^\d+$`
)

// BuildBookingJSONSchema returns the JSON Schema (draft 2020-12 subset) for a model
// response after normalisation: an array of trip objects.
func BuildBookingJSONSchema() map[string]any {
	props := map[string]any{}
	for _, f := range constants.BookingFields() {
		props[f] = map[string]any{"type": "string"}
	}
	props[constants.FieldDate] = map[string]any{"type": "string", "minLength": 1}
	props[constants.FieldVisits] = map[string]any{"type": "string", "pattern": visitsPattern}
	for _, f := range constants.MoneyFields {
		props[f] = map[string]any{"type": "string", "pattern": decimalPattern}
	}

	// a trip needs a starting point on at least one leg
	var anyOf []any
	for _, f := range constants.LocationFields {
		anyOf = append(anyOf, map[string]any{
			"required":   []string{f},
			"properties": map[string]any{f: map[string]any{"minLength": 1}},
		})
	}

	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
			"required":             []string{constants.FieldDate, constants.FieldVisits},
			"anyOf":                anyOf,
		},
	}
}

// Schema is a compiled schema, safe for concurrent use.
type Schema struct {
	compiled *jsonschema.Schema
}

func CompileSchema(schemaMap map[string]any) (*Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks an already decoded JSON value.
func (s *Schema) Validate(v any) error {
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateJSON decodes data and validates it.
func (s *Schema) ValidateJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return s.Validate(v)
}
