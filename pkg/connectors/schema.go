package connectors

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// schemaReflector derives tool input schemas from params structs.
//
// Property names come from json tags. A field without omitempty is required,
// so the json tag must agree with the validate tag. Descriptions come from
// jsonschema_description; defaults and numeric bounds from jsonschema tags
// (default=..., minimum=..., maximum=...). Unknown properties are allowed
// because DecodeParams ignores them.
var schemaReflector = &jsonschema.Reflector{
	Anonymous:                 true,
	AllowAdditionalProperties: true,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// SchemaFor returns the JSON Schema of the params struct T.
func SchemaFor[T any]() (json.RawMessage, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("connectors.SchemaFor: %s is not a struct", t)
	}
	s := schemaReflector.ReflectFromType(t)
	s.Version = ""
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("connectors.SchemaFor: %s: %w", t, err)
	}
	return b, nil
}

// MustSchemaFor is SchemaFor for package-level tool tables.
func MustSchemaFor[T any]() json.RawMessage {
	b, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return b
}
