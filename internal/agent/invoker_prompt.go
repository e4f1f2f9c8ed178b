package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

const promptContract = `To act, emit exactly one tool call and nothing after it, in this exact form:

<tool_call>
{"name": "tool_name", "arguments": {"param": "value"}}
</tool_call>

To reply to the user, write plain text without any tool call.
Never announce an action without also emitting the tool call for it.
Only use the tools listed above, with their exact names.`

const promptTodoGuide = `For multi-step work you may first outline a checklist:

<todo title="Plan">
- [1] first step
- [2] second step
</todo>

and later mark progress with <todo_update id="1" status="completed" result="short note"/>.
Valid statuses are pending, in_progress, completed and failed.`

// PromptInvoker elicits tool calls through an output convention in plain
// text, for models without native tool calling. At most one call is honored
// per round.
type PromptInvoker struct {
	provider llm.Provider
	newID    func() string
}

func NewPromptInvoker(provider llm.Provider, newID func() string) *PromptInvoker {
	if newID == nil {
		newID = uuid.NewString
	}
	return &PromptInvoker{provider: provider, newID: newID}
}

func (p *PromptInvoker) Strategy() Strategy { return StrategyPrompt }

func (p *PromptInvoker) Invoke(ctx context.Context, req InvokeRequest, emit EmitFunc) (Round, error) {
	// tools travel in the preamble only
	stream, err := p.provider.Stream(ctx, llm.Request{
		Model:           req.Model,
		Messages:        buildPromptMessages(req.Messages, req.Tools),
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
	})
	if err != nil {
		return Round{}, err
	}
	defer stream.Close()

	var (
		demux     = NewDemuxer(nil)
		reasoning channels
		raw       strings.Builder
		visible   strings.Builder
		round     Round
		sawReason bool
	)
	// visible text is collected from the events actually surfaced
	track := func(evs []Event) error {
		for _, ev := range evs {
			if d, ok := ev.(*TextDelta); ok {
				visible.WriteString(d.Text)
			}
			if err := emit(ev); err != nil {
				return err
			}
		}
		return nil
	}
	fail := func(err error) (Round, error) {
		if emitErr := emitAll(emit, reasoning.close()); emitErr != nil {
			return round, emitErr
		}
		if emitErr := track(demux.Finish()); emitErr != nil {
			return round, emitErr
		}
		return round, err
	}

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(err)
		}
		switch ev.Type {
		case llm.EventTextDelta:
			if ev.Text == "" {
				continue
			}
			raw.WriteString(ev.Text)
			if err := emitAll(emit, reasoning.close()); err != nil {
				return round, err
			}
			if err := track(demux.Write(ev.Text)); err != nil {
				return round, err
			}
		case llm.EventReasoningDelta:
			// provider-side reasoning, separate from <think> markup in the text
			if ev.Text == "" {
				continue
			}
			sawReason = true
			if err := emitAll(emit, reasoning.thinking(ev.Text)); err != nil {
				return round, err
			}
		case llm.EventUsage:
			round.Usage.Add(ev.Use)
		case llm.EventRetry:
			slog.Debug("provider retry", "provider", p.provider.Name(),
				"attempt", ev.RetryAttempt, "max", ev.RetryMaxAttempts, "wait_secs", ev.RetryWaitSecs)
		case llm.EventToolCall:
			if ev.Tool != nil {
				slog.Debug("ignoring structured tool call in prompt mode", "tool", ev.Tool.Name)
			}
		case llm.EventError:
			if ev.Err != nil {
				return fail(ev.Err)
			}
		}
	}
	if err := emitAll(emit, reasoning.close()); err != nil {
		return round, err
	}
	if err := track(demux.Finish()); err != nil {
		return round, err
	}

	round.Raw = raw.String()
	round.Text = visible.String()
	if strings.TrimSpace(round.Raw) == "" && !sawReason {
		return round, ErrEmptyResponse
	}

	if call := ExtractToolCall(round.Raw); call != nil {
		call.ID = p.newID()
		round.Calls = []ToolCallRequest{*call}
		if err := emit(&ToolCallStart{ID: call.ID, Name: call.Name, Arguments: call.Arguments}); err != nil {
			return round, err
		}
		return round, nil
	}
	if demux.SawToolCall() {
		slog.Debug("tool call markup without a parseable payload", "raw_len", len(round.Raw))
	}

	// no call: show what the model wrote rather than drop it
	switch {
	case !demux.SawText():
		if fallback := StripMarkup(round.Raw); fallback != "" {
			round.Text = fallback
			if err := emitAll(emit, []Event{&TextStart{}, &TextDelta{Text: fallback}, &TextEnd{}}); err != nil {
				return round, err
			}
		}
	case demux.HeldJSON() != "":
		held := demux.HeldJSON()
		round.Text = strings.TrimRight(round.Text, "\n") + "\n\n" + held
		if err := emitAll(emit, []Event{&TextStart{}, &TextDelta{Text: held}, &TextEnd{}}); err != nil {
			return round, err
		}
	}
	return round, nil
}

// buildPromptMessages prepends the tool preamble and rewrites structured
// tool turns as plain text the model can read.
func buildPromptMessages(history []llm.Message, tools []llm.ToolSpec) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	if len(tools) > 0 {
		out = append(out, llm.SystemText(toolPreamble(tools)))
	}
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleTool:
			out = append(out, llm.UserText(toolTurnText(msg)))
		case llm.RoleAssistant:
			out = append(out, llm.AssistantText(assistantTurnText(msg)))
		default:
			out = append(out, msg)
		}
	}
	return out
}

func toolPreamble(tools []llm.ToolSpec) string {
	var b strings.Builder
	b.WriteString("You can use the following tools.\n\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "## %s\n", tool.Name)
		if desc := strings.TrimSpace(tool.Description); desc != "" {
			b.WriteString(desc)
			b.WriteString("\n")
		}
		writeToolParams(&b, tool)
		b.WriteString("\n")
	}
	b.WriteString(promptContract)
	b.WriteString("\n\n")
	b.WriteString(promptTodoGuide)
	return b.String()
}

func writeToolParams(b *strings.Builder, tool llm.ToolSpec) {
	schema, err := NewToolSchema(tool.Schema)
	if err != nil {
		data, _ := json.Marshal(tool.Schema)
		fmt.Fprintf(b, "Parameters schema: %s\n", data)
		return
	}
	required, optional := schema.Required(), schema.Optional()
	if len(required) == 0 && len(optional) == 0 {
		b.WriteString("Parameters: none\n")
		return
	}
	b.WriteString("Parameters:\n")
	for _, name := range required {
		fmt.Fprintf(b, "- %s (%s, required)%s\n", name, paramType(schema, name), paramDesc(tool.Schema, name))
	}
	for _, name := range optional {
		fmt.Fprintf(b, "- %s (%s, optional)%s\n", name, paramType(schema, name), paramDesc(tool.Schema, name))
	}
}

func paramType(schema *ToolSchema, name string) string {
	if t := schema.PropertyType(name); t != "" {
		return t
	}
	return "any"
}

func paramDesc(raw map[string]any, name string) string {
	props, _ := raw["properties"].(map[string]any)
	prop, _ := props[name].(map[string]any)
	if desc, _ := prop["description"].(string); strings.TrimSpace(desc) != "" {
		return ": " + strings.TrimSpace(desc)
	}
	return ""
}

func toolTurnText(msg llm.Message) string {
	var parts []string
	for _, part := range msg.Parts {
		switch {
		case part.ToolResult != nil:
			content := part.ToolResult.Content
			if !strings.HasPrefix(strings.TrimSpace(content), "<tool_result") {
				content = promptToolTurn(ToolCallResult{
					ID:      part.ToolResult.ID,
					Name:    part.ToolResult.Name,
					IsError: part.ToolResult.IsError,
				}, content)
			}
			parts = append(parts, content)
		case part.Text != "":
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// assistantTurnText flattens structured tool calls into the tagged form the
// model is asked to produce.
func assistantTurnText(msg llm.Message) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		switch {
		case part.ToolCall != nil:
			args := part.ToolCall.Arguments
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			payload, _ := json.Marshal(struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			}{part.ToolCall.Name, args})
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "<tool_call>\n%s\n</tool_call>", payload)
		case part.Text != "":
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
