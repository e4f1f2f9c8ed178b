package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoMessages is returned by providers asked to stream an empty conversation.
var ErrNoMessages = errors.New("no messages provided")

// Provider streams model output events for a request.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Capabilities describe optional provider features.
type Capabilities struct {
	ToolCalls bool // Provider returns structured tool calls
	Reasoning bool // Provider surfaces reasoning/thinking deltas
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Request represents a single model generation step.
type Request struct {
	Model           string
	Messages        []Message
	Tools           []ToolSpec
	MaxOutputTokens int
	Temperature     float32
}

// Role identifies a message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies a message content part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Message holds a role with structured parts.
type Message struct {
	Role  Role   `json:"role" yaml:"role"`
	Parts []Part `json:"parts" yaml:"parts"`
}

// Part represents a single content part.
type Part struct {
	Type       PartType    `json:"type" yaml:"type"`
	Text       string      `json:"text,omitempty" yaml:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty" yaml:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty" yaml:"tool_result,omitempty"`
}

// ToolSpec describes a callable tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	ThoughtSig []byte          `json:"-"` // Gemini thought signature (must be passed back in result)
}

// ToolResult is the output from executing a tool call.
type ToolResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
	ThoughtSig []byte `json:"-"`
}

// EventType describes streaming events.
type EventType string

const (
	EventTextDelta      EventType = "text_delta"
	EventReasoningDelta EventType = "reasoning_delta"
	EventToolCall       EventType = "tool_call"
	EventUsage          EventType = "usage"
	EventDone           EventType = "done"
	EventError          EventType = "error"
	EventRetry          EventType = "retry" // Emitted when retrying after a transient failure
)

// Event represents a streamed output update.
type Event struct {
	Type EventType
	Text string
	Tool *ToolCall
	Use  *Usage
	Err  error
	// Retry fields (for EventRetry)
	RetryAttempt     int
	RetryMaxAttempts int
	RetryWaitSecs    float64
}

// Usage captures token usage if available.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage report into u.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

func SystemText(text string) Message {
	return Message{
		Role:  RoleSystem,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func UserText(text string) Message {
	return Message{
		Role:  RoleUser,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func AssistantText(text string) Message {
	return Message{
		Role:  RoleAssistant,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

// AssistantToolCalls builds an assistant turn carrying optional text and
// the structured tool calls the model requested.
func AssistantToolCalls(text string, calls []ToolCall) Message {
	parts := make([]Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, Part{Type: PartText, Text: text})
	}
	for i := range calls {
		call := calls[i]
		parts = append(parts, Part{Type: PartToolCall, ToolCall: &call})
	}
	return Message{Role: RoleAssistant, Parts: parts}
}

func ToolResultMessage(id, name, content string, thoughtSig []byte) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type: PartToolResult,
			ToolResult: &ToolResult{
				ID:         id,
				Name:       name,
				Content:    content,
				ThoughtSig: thoughtSig,
			},
		}},
	}
}

// ToolErrorMessage creates a tool result message that indicates an error.
// The error is passed to the LLM so it can respond gracefully instead of failing the stream.
func ToolErrorMessage(id, name, errorText string, thoughtSig []byte) Message {
	msg := ToolResultMessage(id, name, errorText, thoughtSig)
	msg.Parts[0].ToolResult.IsError = true
	return msg
}

// Text returns the concatenated text parts of a message.
func (m Message) Text() string {
	return collectTextParts(m.Parts)
}
