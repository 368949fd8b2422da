package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `{
  "disabled": false,
  "content": {
    "rules": [
      {
        "name": "opt",
        "conditions": [{"type": "string", "subject": "city", "predicate": "is one of", "objects": ["Paris"]}],
        "serve": {"select": 1}
      },
      {
        "conditions": [{"type": "segment", "predicate": "is in", "objects": ["beta"]}],
        "serve": {"split": [2500, 7500]}
      }
    ],
    "disabledServe": {"select": 0},
    "defaultServe": {"split": [5000, 5000]},
    "variations": [
      {"name": "off", "value": "false", "description": ""},
      {"name": "on", "value": "true", "description": ""}
    ]
  }
}`

func TestValidator_AcceptsCanonical(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)
	assert.NoError(t, v.Validate([]byte(validDoc)))
}

func TestValidator_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		pointer string
	}{
		{
			name:    "serve with both arms",
			replace: [2]string{`"disabledServe": {"select": 0}`, `"disabledServe": {"select": 0, "split": [10000]}`},
			pointer: "/content/disabledServe",
		},
		{
			name:    "serve with neither arm",
			replace: [2]string{`"defaultServe": {"split": [5000, 5000]}`, `"defaultServe": {}`},
			pointer: "/content/defaultServe",
		},
		{
			name:    "null serve",
			replace: [2]string{`"serve": {"select": 1}`, `"serve": null`},
			pointer: "/content/rules/0/serve",
		},
		{
			name:    "unknown condition type",
			replace: [2]string{`"type": "string"`, `"type": "regex"`},
			pointer: "/content/rules/0/conditions/0/type",
		},
		{
			name:    "negative select",
			replace: [2]string{`"serve": {"select": 1}`, `"serve": {"select": -1}`},
			pointer: "/content/rules/0/serve",
		},
		{
			name:    "editor artifact",
			replace: [2]string{`"name": "opt",`, `"name": "opt", "active": true,`},
			pointer: "/content/rules/0",
		},
	}

	v, err := Default()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(validDoc, tt.replace[0], tt.replace[1], 1)
			require.NotEqual(t, validDoc, doc, "replacement did not apply")

			err := v.Validate([]byte(doc))
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "error %T is not *ValidationError", err)
			assert.True(t, strings.HasPrefix(ve.Pointer, tt.pointer), "pointer %q, want prefix %q", ve.Pointer, tt.pointer)
		})
	}
}

func TestValidator_InvalidJSON(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	err = v.Validate([]byte(`{"disabled": `))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "invalid JSON", ve.Detail)
}

func TestJSON_ServeOneOf(t *testing.T) {
	raw, err := JSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"oneOf"`)
	assert.Contains(t, string(raw), ID)
}
