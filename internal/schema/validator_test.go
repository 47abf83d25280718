package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "rhyolite-backend/pkg/errors"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

var personSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"age": {"type": "integer", "minimum": 0},
		"is_active": {"type": "boolean"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"profile": {
			"type": "object",
			"properties": {
				"bio": {"type": "string"},
				"level": {"type": "string", "enum": ["beginner", "expert"]}
			},
			"required": ["bio"],
			"additionalProperties": false
		}
	},
	"required": ["name", "is_active"],
	"additionalProperties": true
}`

func TestValidate(t *testing.T) {
	schemaDoc := decode(t, personSchema)

	t.Run("ValidPayload", func(t *testing.T) {
		payload := decode(t, `{
			"name": "alice",
			"is_active": true,
			"age": 30,
			"tags": ["a", "b"],
			"profile": {"bio": "hello", "level": "expert"}
		}`)
		require.NoError(t, Validate(schemaDoc, payload))
	})

	t.Run("MissingRequiredField", func(t *testing.T) {
		payload := decode(t, `{"name": "alice"}`)
		err := Validate(schemaDoc, payload)
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
		assert.NotEmpty(t, appErrors.ViolationsOf(err))
	})

	t.Run("WrongType", func(t *testing.T) {
		payload := decode(t, `{"name": "alice", "is_active": "yes"}`)
		err := Validate(schemaDoc, payload)
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("NestedViolationCarriesPath", func(t *testing.T) {
		payload := decode(t, `{
			"name": "alice",
			"is_active": true,
			"profile": {"bio": "x", "level": "wizard"}
		}`)
		err := Validate(schemaDoc, payload)
		require.Error(t, err)

		violations := appErrors.ViolationsOf(err)
		require.NotEmpty(t, violations)

		var found bool
		for _, v := range violations {
			if v.Path == "/profile/level" {
				found = true
			}
		}
		assert.True(t, found, "expected a violation at /profile/level, got %v", violations)
	})

	t.Run("AdditionalPropertiesRejected", func(t *testing.T) {
		payload := decode(t, `{
			"name": "alice",
			"is_active": true,
			"profile": {"bio": "x", "unexpected": 1}
		}`)
		err := Validate(schemaDoc, payload)
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("EmptySchemaAcceptsAnything", func(t *testing.T) {
		payload := decode(t, `{"anything": [1, 2, {"x": null}]}`)
		require.NoError(t, Validate(map[string]interface{}{}, payload))
		require.NoError(t, Validate(nil, payload))
	})

	t.Run("PatternConstraint", func(t *testing.T) {
		schemaDoc := decode(t, `{
			"type": "object",
			"properties": {"code": {"type": "string", "pattern": "^[a-z]{3}-[0-9]+$"}}
		}`)
		require.NoError(t, Validate(schemaDoc, decode(t, `{"code": "abc-42"}`)))

		err := Validate(schemaDoc, decode(t, `{"code": "nope"}`))
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})
}

func TestCheckSchema(t *testing.T) {
	t.Run("ValidSchema", func(t *testing.T) {
		require.NoError(t, CheckSchema(decode(t, personSchema)))
	})

	t.Run("EmptySchema", func(t *testing.T) {
		require.NoError(t, CheckSchema(map[string]interface{}{}))
	})

	t.Run("BrokenSchema", func(t *testing.T) {
		err := CheckSchema(decode(t, `{"type": "not-a-type"}`))
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})
}
