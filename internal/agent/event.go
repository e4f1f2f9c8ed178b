package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// Kind names an event variant. It is the "type" field of the JSON encoding.
type Kind string

const (
	KindIterationStart Kind = "iteration_start"
	KindIterationEnd   Kind = "iteration_end"
	KindThinkingStart  Kind = "thinking_start"
	KindThinkingDelta  Kind = "thinking_delta"
	KindThinkingEnd    Kind = "thinking_end"
	KindTextStart      Kind = "text_start"
	KindTextDelta      Kind = "text_delta"
	KindTextEnd        Kind = "text_end"
	KindToolCallStart  Kind = "tool_call_start"
	KindToolExecuting  Kind = "tool_executing"
	KindToolResult     Kind = "tool_result"
	KindTodoStart      Kind = "todo_start"
	KindTodoItemAdd    Kind = "todo_item_add"
	KindTodoItemUpdate Kind = "todo_item_update"
	KindError          Kind = "error"
	KindComplete       Kind = "complete"
)

// Event is one element of the ordered sequence produced by a chat call.
// The set of implementations is closed; use a type switch over the
// pointer types below.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
	stamp(time.Time)
}

type base struct {
	Time time.Time `json:"timestamp"`
}

func (b *base) Timestamp() time.Time { return b.Time }
func (b *base) stamp(t time.Time)    { b.Time = t }

type IterationStart struct {
	base
	Iteration int `json:"iteration"`
}

type IterationEnd struct {
	base
	Iteration int `json:"iteration"`
	ToolCalls int `json:"tool_calls"`
}

type ThinkingStart struct{ base }

type ThinkingDelta struct {
	base
	Text string `json:"text"`
}

type ThinkingEnd struct{ base }

type TextStart struct{ base }

type TextDelta struct {
	base
	Text string `json:"text"`
}

type TextEnd struct{ base }

// ToolCallStart announces a recognized tool invocation.
type ToolCallStart struct {
	base
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolExecuting is emitted right before the tool provider is called.
type ToolExecuting struct {
	base
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ToolResult struct {
	base
	ToolCallResult
}

type TodoStart struct {
	base
	ListID string `json:"list_id"`
	Title  string `json:"title"`

	items []TodoItem // parsed items, expanded into TodoItemAdd events
}

type TodoItemAdd struct {
	base
	ListID string   `json:"list_id"`
	Item   TodoItem `json:"item"`
}

type TodoItemUpdate struct {
	base
	ListID string     `json:"list_id"`
	ItemID string     `json:"item_id"`
	Status TodoStatus `json:"status"`
	Result string     `json:"result,omitempty"`
}

// Error reports a stream-level failure. Err is kept for errors.Is checks.
type Error struct {
	base
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Complete always terminates the sequence.
type Complete struct {
	base
	TotalIterations int        `json:"total_iterations"`
	TotalDurationMs int64      `json:"total_duration_ms"`
	Usage           *llm.Usage `json:"usage,omitempty"`
}

func (*IterationStart) Kind() Kind { return KindIterationStart }
func (*IterationEnd) Kind() Kind   { return KindIterationEnd }
func (*ThinkingStart) Kind() Kind  { return KindThinkingStart }
func (*ThinkingDelta) Kind() Kind  { return KindThinkingDelta }
func (*ThinkingEnd) Kind() Kind    { return KindThinkingEnd }
func (*TextStart) Kind() Kind      { return KindTextStart }
func (*TextDelta) Kind() Kind      { return KindTextDelta }
func (*TextEnd) Kind() Kind        { return KindTextEnd }
func (*ToolCallStart) Kind() Kind  { return KindToolCallStart }
func (*ToolExecuting) Kind() Kind  { return KindToolExecuting }
func (*ToolResult) Kind() Kind     { return KindToolResult }
func (*TodoStart) Kind() Kind      { return KindTodoStart }
func (*TodoItemAdd) Kind() Kind    { return KindTodoItemAdd }
func (*TodoItemUpdate) Kind() Kind { return KindTodoItemUpdate }
func (*Error) Kind() Kind          { return KindError }
func (*Complete) Kind() Kind       { return KindComplete }

// MarshalEvent encodes an event as a flat JSON object with a "type" field.
func MarshalEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}
	fields["type"] = ev.Kind()
	return json.Marshal(fields)
}
