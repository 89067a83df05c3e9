package connectors

import (
	"encoding/json"
	"reflect"
	"testing"
)

type schemaParams struct {
	BlueprintID string `json:"blueprint_id" validate:"required" jsonschema_description:"blueprint id"`
	Template    string `json:"template_name,omitempty" jsonschema:"default=Rack Based"`
	VLAN        int    `json:"vlan_id" validate:"required,gte=1,lte=4094" jsonschema:"minimum=1,maximum=4094"`
	DryRun      bool   `json:"dry_run,omitempty"`
}

type schemaDoc struct {
	Type                 string                    `json:"type"`
	Properties           map[string]map[string]any `json:"properties"`
	Required             []string                  `json:"required"`
	AdditionalProperties *bool                     `json:"additionalProperties"`
}

func decodeSchema(t *testing.T, raw json.RawMessage) schemaDoc {
	t.Helper()
	var s schemaDoc
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	return s
}

func TestSchemaFor(t *testing.T) {
	raw, err := SchemaFor[schemaParams]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := decodeSchema(t, raw)
	if s.Type != "object" {
		t.Errorf("expected object, got %q", s.Type)
	}
	if !reflect.DeepEqual(s.Required, []string{"blueprint_id", "vlan_id"}) {
		t.Errorf("unexpected required %v", s.Required)
	}
	if s.AdditionalProperties != nil && !*s.AdditionalProperties {
		t.Error("extra params are ignored, so the schema must not forbid them")
	}
	if got := s.Properties["template_name"]["default"]; got != "Rack Based" {
		t.Errorf("expected template default, got %v", got)
	}
	vlan := s.Properties["vlan_id"]
	if vlan["type"] != "integer" || vlan["minimum"] != float64(1) || vlan["maximum"] != float64(4094) {
		t.Errorf("expected bounded integer vlan_id, got %v", vlan)
	}
	if got := s.Properties["blueprint_id"]["description"]; got != "blueprint id" {
		t.Errorf("expected description, got %v", got)
	}
	if s.Properties["dry_run"]["type"] != "boolean" {
		t.Errorf("expected boolean dry_run, got %v", s.Properties["dry_run"])
	}
	if len(s.Properties) != 4 {
		t.Errorf("expected 4 properties, got %d", len(s.Properties))
	}
	var top map[string]any
	_ = json.Unmarshal(raw, &top)
	if _, ok := top["$schema"]; ok {
		t.Error("schema must not carry a $schema version")
	}
	if _, ok := top["$id"]; ok {
		t.Error("schema must not carry an $id")
	}
}

func TestSchemaFor_EmptyStruct(t *testing.T) {
	raw, err := SchemaFor[struct{}]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := decodeSchema(t, raw)
	if s.Type != "object" || len(s.Properties) != 0 || len(s.Required) != 0 {
		t.Errorf("unexpected schema %s", raw)
	}
}

func TestSchemaFor_RejectsNonStruct(t *testing.T) {
	if _, err := SchemaFor[string](); err == nil {
		t.Fatal("expected error for non-struct params")
	}
}
