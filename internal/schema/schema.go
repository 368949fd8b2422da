// Package schema publishes the JSON Schema of the canonical configuration
// and validates raw documents against it.
//
// The schema is reflected from internal/types with invopop/jsonschema and
// compiled with santhosh-tekuri/jsonschema. Serve has a custom JSON shape
// that reflection cannot see, so it is mapped by hand to a oneOf of the
// select and split objects.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/solatis/flagkeeper/internal/types"
)

// ID is the $id of the configuration schema.
const ID = "https://github.com/solatis/flagkeeper/schema/configuration.json"

// Reflect builds the configuration schema.
func Reflect() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Mapper:         mapType,
		DoNotReference: true,
	}
	s := r.Reflect(&types.Configuration{})
	s.ID = ID
	s.Title = "Targeting configuration"
	return s
}

// JSON renders the schema as indented JSON.
func JSON() ([]byte, error) {
	return json.MarshalIndent(Reflect(), "", "  ")
}

func mapType(t reflect.Type) *jsonschema.Schema {
	if t == reflect.TypeOf(types.Serve{}) {
		return serveSchema()
	}
	return nil
}

func serveSchema() *jsonschema.Schema {
	sel := jsonschema.NewProperties()
	sel.Set("select", &jsonschema.Schema{Type: "integer", Minimum: json.Number("0")})

	split := jsonschema.NewProperties()
	split.Set("split", &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "integer", Minimum: json.Number("0")},
	})

	return &jsonschema.Schema{
		Description: "Serve exactly one variation (select) or split traffic across all variations in basis points (split).",
		OneOf: []*jsonschema.Schema{
			{
				Title:                "select",
				Type:                 "object",
				Properties:           sel,
				Required:             []string{"select"},
				AdditionalProperties: jsonschema.FalseSchema,
			},
			{
				Title:                "split",
				Type:                 "object",
				Properties:           split,
				Required:             []string{"split"},
				AdditionalProperties: jsonschema.FalseSchema,
			},
		},
	}
}

// ValidationError reports where a document violates the schema.
type ValidationError struct {
	Pointer string
	Detail  string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Pointer == "" {
		return "schema validation: " + e.Detail
	}
	return fmt.Sprintf("schema validation at %s: %s", e.Pointer, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validator validates raw configuration JSON.
type Validator struct {
	schema *santhosh.Schema
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns a process-wide validator compiled on first use.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

// NewValidator compiles the reflected configuration schema.
func NewValidator() (*Validator, error) {
	raw, err := JSON()
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := santhosh.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := santhosh.NewCompiler()
	if err := compiler.AddResource(ID, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(ID)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks a JSON document against the schema.
func (v *Validator) Validate(data []byte) error {
	inst, err := santhosh.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Detail: "invalid JSON", Err: err}
	}

	err = v.schema.Validate(inst)
	if err == nil {
		return nil
	}

	var ve *santhosh.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema validation: %w", err)
	}
	leaf := deepestCause(ve)
	return &ValidationError{
		Pointer: "/" + strings.Join(leaf.InstanceLocation, "/"),
		Detail:  leaf.Error(),
		Err:     ve,
	}
}

// deepestCause follows the cause with the longest instance location.
func deepestCause(err *santhosh.ValidationError) *santhosh.ValidationError {
	best := err
	for _, c := range err.Causes {
		if d := deepestCause(c); len(d.InstanceLocation) > len(best.InstanceLocation) {
			best = d
		}
	}
	return best
}
