// Package schema validates node payloads against kind schemas. Kind schemas
// are JSON Schema documents stored as data and compiled at request time,
// since kinds are declared by callers at runtime rather than at build time.
package schema

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	appErrors "rhyolite-backend/pkg/errors"
)

const resourceURL = "inline://kind-schema.json"

// CheckSchema verifies that a schema document is itself a valid JSON Schema.
// Used at kind-declaration time so that broken schemas are rejected up front
// instead of failing every later node write.
func CheckSchema(schemaDoc map[string]interface{}) error {
	if _, err := compile(schemaDoc); err != nil {
		return appErrors.NewValidationWithViolations(
			"kind schema is not a valid JSON Schema",
			[]appErrors.Violation{{Path: "/", Message: err.Error()}},
		)
	}
	return nil
}

// Validate checks a payload against a kind's schema document. A nil error
// means the payload conforms. The empty schema document accepts any payload.
func Validate(schemaDoc, payload map[string]interface{}) error {
	compiled, err := compile(schemaDoc)
	if err != nil {
		return appErrors.NewInternal("compiling kind schema", err)
	}

	instance := map[string]interface{}(payload)
	if instance == nil {
		instance = map[string]interface{}{}
	}

	if err := compiled.Validate(instance); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return appErrors.NewValidationWithViolations(
				"payload does not match schema", flatten(ve))
		}
		return appErrors.NewValidation(err.Error())
	}
	return nil
}

func compile(schemaDoc map[string]interface{}) (*jsonschema.Schema, error) {
	if schemaDoc == nil {
		schemaDoc = map[string]interface{}{}
	}
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceURL)
}

// flatten walks the cause tree and returns one violation per leaf error,
// keyed by the JSON pointer of the offending instance location.
func flatten(ve *jsonschema.ValidationError) []appErrors.Violation {
	if len(ve.Causes) == 0 {
		path := ve.InstanceLocation
		if path == "" {
			path = "/"
		}
		return []appErrors.Violation{{Path: path, Message: ve.Message}}
	}

	var out []appErrors.Violation
	for _, cause := range ve.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}
