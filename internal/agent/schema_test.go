package agent

import (
	"reflect"
	"testing"
)

func searchSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "what to look for"},
			"limit": map[string]any{"type": "integer"},
			"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"when":  map[string]any{"type": "datetime"},
		},
		"required": []any{"query"},
	}
}

func TestToolSchemaValidate(t *testing.T) {
	s, err := NewToolSchema(searchSchema())
	if err != nil {
		t.Fatalf("NewToolSchema: %v", err)
	}
	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"required only", map[string]any{"query": "go"}, false},
		{"all fields", map[string]any{"query": "go", "limit": float64(3), "tags": []any{"a"}}, false},
		{"unknown type passes through", map[string]any{"query": "go", "when": 12}, false},
		{"missing required", map[string]any{"limit": float64(1)}, true},
		{"nil args missing required", nil, true},
		{"wrong type", map[string]any{"query": 5}, true},
		{"fractional integer", map[string]any{"query": "go", "limit": 1.5}, true},
		{"bad array item", map[string]any{"query": "go", "tags": []any{1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToolSchemaParams(t *testing.T) {
	s, err := NewToolSchema(searchSchema())
	if err != nil {
		t.Fatalf("NewToolSchema: %v", err)
	}
	if got, want := s.Required(), []string{"query"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Required() = %v, want %v", got, want)
	}
	if got, want := s.Optional(), []string{"limit", "tags", "when"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Optional() = %v, want %v", got, want)
	}
	if got := s.PropertyType("limit"); got != "integer" {
		t.Errorf("PropertyType(limit) = %q", got)
	}
	if got := s.PropertyType("when"); got != "" {
		t.Errorf("PropertyType(when) = %q, want unconstrained", got)
	}
}

func TestToolSchemaEmpty(t *testing.T) {
	s, err := NewToolSchema(nil)
	if err != nil {
		t.Fatalf("NewToolSchema(nil): %v", err)
	}
	if err := s.Validate(nil); err != nil {
		t.Errorf("Validate(nil) = %v", err)
	}
	if len(s.Required()) != 0 || len(s.Optional()) != 0 {
		t.Error("empty schema should have no params")
	}
}
