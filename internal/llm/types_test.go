package llm

import (
	"encoding/json"
	"testing"
)

func TestAssistantToolCallsCopiesCalls(t *testing.T) {
	calls := []ToolCall{
		{ID: "1", Name: "a", Arguments: json.RawMessage(`{}`)},
		{ID: "2", Name: "b", Arguments: json.RawMessage(`{}`)},
	}
	msg := AssistantToolCalls("thinking out loud", calls)

	if len(msg.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(msg.Parts))
	}
	if msg.Parts[1].ToolCall.ID != "1" || msg.Parts[2].ToolCall.ID != "2" {
		t.Fatalf("parts point at the wrong calls: %+v", msg.Parts)
	}
	calls[0].Name = "changed"
	if msg.Parts[1].ToolCall.Name != "a" {
		t.Fatalf("message aliases caller's slice")
	}
}

func TestToolErrorMessage(t *testing.T) {
	msg := ToolErrorMessage("id", "glob", "boom", nil)
	if msg.Role != RoleTool {
		t.Fatalf("role=%q", msg.Role)
	}
	result := msg.Parts[0].ToolResult
	if !result.IsError || result.Content != "boom" {
		t.Fatalf("result=%+v", result)
	}
}

func TestUsageAdd(t *testing.T) {
	var u Usage
	u.Add(&Usage{InputTokens: 3, OutputTokens: 1})
	u.Add(nil)
	u.Add(&Usage{InputTokens: 2, OutputTokens: 4})
	if u.InputTokens != 5 || u.OutputTokens != 5 {
		t.Fatalf("usage=%+v", u)
	}
}

func TestMessageText(t *testing.T) {
	msg := Message{Role: RoleAssistant, Parts: []Part{
		{Type: PartText, Text: "a"},
		{Type: PartToolCall, ToolCall: &ToolCall{Name: "x"}},
		{Type: PartText, Text: "b"},
	}}
	if got := msg.Text(); got != "ab" {
		t.Fatalf("Text()=%q", got)
	}
}
