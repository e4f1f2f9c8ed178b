package llm

import (
	"encoding/json"
	"testing"

	"google.golang.org/genai"
)

func TestBuildGeminiContentsKeepsToolRound(t *testing.T) {
	system, contents := buildGeminiContents([]Message{
		SystemText("sys"),
		UserText("Run glob"),
		AssistantToolCalls("Working", []ToolCall{{
			ID:         "call-1",
			Name:       "glob",
			Arguments:  json.RawMessage(`{"pattern":"*.md"}`),
			ThoughtSig: []byte("sig"),
		}}),
		ToolErrorMessage("call-1", "glob", "bad pattern", []byte("sig")),
	})

	if system != "sys" {
		t.Fatalf("system=%q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}

	model := contents[1]
	if model.Role != genai.RoleModel {
		t.Fatalf("expected role model, got %q", model.Role)
	}
	if len(model.Parts) != 2 || model.Parts[1].FunctionCall == nil {
		t.Fatalf("expected text and function call parts, got %#v", model.Parts)
	}
	if got := model.Parts[1].FunctionCall.Args["pattern"]; got != "*.md" {
		t.Fatalf("pattern arg=%v", got)
	}
	if string(model.Parts[1].ThoughtSignature) != "sig" {
		t.Fatalf("thought signature not preserved")
	}

	result := contents[2].Parts[0].FunctionResponse
	if result == nil {
		t.Fatalf("expected function response")
	}
	if result.Response["error"] != "bad pattern" {
		t.Fatalf("response=%v", result.Response)
	}
}

func TestNormalizeSchemaForGeminiStripsUnsupported(t *testing.T) {
	in := map[string]interface{}{
		"type":                 "object",
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "minLength": 1, "description": "file"},
			"mode": map[string]interface{}{"type": "string", "enum": []interface{}{"a", "b"}},
		},
		"required": []interface{}{"path"},
	}

	out := normalizeSchemaForGemini(in)
	if _, ok := out["$schema"]; ok {
		t.Fatalf("$schema not stripped")
	}
	path := out["properties"].(map[string]interface{})["path"].(map[string]interface{})
	if _, ok := path["minLength"]; ok {
		t.Fatalf("minLength not stripped")
	}
	// input must not be mutated
	if _, ok := in["$schema"]; !ok {
		t.Fatalf("input schema was mutated")
	}

	schema := schemaToGenai(out)
	if schema.Type != genai.TypeObject {
		t.Fatalf("type=%v", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "path" {
		t.Fatalf("required=%v", schema.Required)
	}
	if got := schema.Properties["mode"].Enum; len(got) != 2 {
		t.Fatalf("enum=%v", got)
	}
}

func TestSchemaTypeFromValueUnknownIsPermissive(t *testing.T) {
	if got := schemaTypeFromValue(map[string]interface{}{"type": "any"}); got != genai.TypeUnspecified {
		t.Fatalf("got %v, want unspecified", got)
	}
}

func TestToolArgsToMapNeverNil(t *testing.T) {
	if got := toolArgsToMap(nil); got == nil {
		t.Fatalf("nil args should decode to empty map")
	}
	if got := toolArgsToMap(json.RawMessage(`null`)); got == nil {
		t.Fatalf("null args should decode to empty map")
	}
	if got := toolArgsToMap(json.RawMessage(`{oops`)); got["_raw"] != "{oops" {
		t.Fatalf("got %v", got)
	}
}
