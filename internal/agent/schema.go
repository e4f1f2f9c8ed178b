package agent

import (
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

var knownSchemaTypes = map[string]bool{
	"object":  true,
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"array":   true,
	"null":    true,
}

// translateSchema converts a tool's JSON-Schema-like inputSchema into a
// jsonschema.Schema. Types it does not know are left unconstrained, and
// only listed required properties are required.
func translateSchema(in map[string]any) *jsonschema.Schema {
	s := &jsonschema.Schema{}
	if in == nil {
		s.Type = "object"
		return s
	}

	switch t := in["type"].(type) {
	case string:
		if knownSchemaTypes[t] {
			s.Type = t
		}
	case []any:
		for _, v := range t {
			name, ok := v.(string)
			if !ok || !knownSchemaTypes[name] {
				s.Types = nil
				break
			}
			s.Types = append(s.Types, name)
		}
	}
	if desc, ok := in["description"].(string); ok {
		s.Description = desc
	}
	if enum, ok := in["enum"].([]any); ok && len(enum) > 0 {
		s.Enum = enum
	}

	if props, ok := in["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*jsonschema.Schema, len(props))
		for name, raw := range props {
			prop, _ := raw.(map[string]any)
			s.Properties[name] = translateSchema(prop)
			if prop == nil {
				s.Properties[name] = &jsonschema.Schema{}
			}
		}
		if s.Type == "" && len(s.Types) == 0 {
			s.Type = "object"
		}
	}
	if items, ok := in["items"].(map[string]any); ok {
		s.Items = translateSchema(items)
	}
	s.Required = schemaRequired(in)
	return s
}

func schemaRequired(in map[string]any) []string {
	var out []string
	switch req := in["required"].(type) {
	case []string:
		out = append(out, req...)
	case []any:
		for _, v := range req {
			if name, ok := v.(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// ToolSchema validates tool arguments against a translated inputSchema.
type ToolSchema struct {
	resolved *jsonschema.Resolved
	schema   *jsonschema.Schema
}

// NewToolSchema translates and resolves an inputSchema.
func NewToolSchema(inputSchema map[string]any) (*ToolSchema, error) {
	schema := translateSchema(inputSchema)
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve tool schema: %w", err)
	}
	return &ToolSchema{resolved: resolved, schema: schema}, nil
}

// Validate checks args. A nil map is validated as an empty object.
func (s *ToolSchema) Validate(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	return s.resolved.Validate(args)
}

// Required returns the required property names.
func (s *ToolSchema) Required() []string {
	return append([]string(nil), s.schema.Required...)
}

// Optional returns the properties that are not required, sorted.
func (s *ToolSchema) Optional() []string {
	req := make(map[string]bool, len(s.schema.Required))
	for _, name := range s.schema.Required {
		req[name] = true
	}
	var out []string
	for name := range s.schema.Properties {
		if !req[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// PropertyType returns the declared type of a property, or "" when it is
// unconstrained.
func (s *ToolSchema) PropertyType(name string) string {
	prop, ok := s.schema.Properties[name]
	if !ok || prop == nil {
		return ""
	}
	if prop.Type != "" {
		return prop.Type
	}
	if len(prop.Types) > 0 {
		return fmt.Sprint(prop.Types)
	}
	return ""
}
