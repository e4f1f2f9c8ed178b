package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates a provider authenticated with an API key.
func NewAnthropicProvider(apiKey, model string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured: set ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicProvider{client: &client, model: model}, nil
}

func (p *AnthropicProvider) Name() string {
	return fmt.Sprintf("Anthropic (%s)", p.model)
}

func (p *AnthropicProvider) Capabilities() Capabilities {
	return Capabilities{ToolCalls: true, Reasoning: true}
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		params, err := p.params(req)
		if err != nil {
			return err
		}

		st := newAnthropicStreamState()
		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			for _, ev := range st.handle(stream.Current()) {
				select {
				case events <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("anthropic streaming error: %w", err)
		}
		if st.usage != nil {
			events <- Event{Type: EventUsage, Use: st.usage}
		}
		events <- Event{Type: EventDone}
		return nil
	}), nil
}

func (p *AnthropicProvider) params(req Request) (anthropic.MessageNewParams, error) {
	system, messages := buildAnthropicMessages(req.Messages)
	if len(messages) == 0 {
		return anthropic.MessageNewParams{}, ErrNoMessages
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(chooseModel(req.Model, p.model)),
		MaxTokens: maxTokens(req.MaxOutputTokens, 4096),
		Messages:  messages,
		Tools:     buildAnthropicTools(req.Tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	slog.Debug("anthropic request", "model", params.Model, "system", truncate(system, 200),
		"messages", len(messages), "tools", len(req.Tools))
	return params, nil
}

// anthropicStreamState maps SDK stream events to provider events. Tool
// calls are emitted when their content block stops.
type anthropicStreamState struct {
	blocks map[int64]*toolUseBlock
	usage  *Usage
}

// toolUseBlock is a tool_use content block still being streamed.
type toolUseBlock struct {
	call    ToolCall
	initial json.RawMessage // input from content_block_start, used when no deltas follow
	input   strings.Builder
}

func newAnthropicStreamState() *anthropicStreamState {
	return &anthropicStreamState{blocks: make(map[int64]*toolUseBlock)}
}

func (s *anthropicStreamState) handle(event anthropic.MessageStreamEventUnion) []Event {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		s.usage = &Usage{InputTokens: int(e.Message.Usage.InputTokens)}
	case anthropic.MessageDeltaEvent:
		if s.usage == nil {
			s.usage = &Usage{}
		}
		if e.Usage.OutputTokens > 0 {
			s.usage.OutputTokens = int(e.Usage.OutputTokens)
		}
	case anthropic.ContentBlockStartEvent:
		if block, ok := e.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
			s.startToolUse(e.Index, ToolCall{ID: block.ID, Name: block.Name, Arguments: toolInputToRaw(block.Input)})
		}
	case anthropic.ContentBlockDeltaEvent:
		switch d := e.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if d.Text != "" {
				return []Event{{Type: EventTextDelta, Text: d.Text}}
			}
		case anthropic.ThinkingDelta:
			if d.Thinking != "" {
				return []Event{{Type: EventReasoningDelta, Text: d.Thinking}}
			}
		case anthropic.InputJSONDelta:
			if b := s.blocks[e.Index]; b != nil {
				b.input.WriteString(d.PartialJSON)
			}
		}
	case anthropic.ContentBlockStopEvent:
		if call, ok := s.stopToolUse(e.Index); ok {
			return []Event{{Type: EventToolCall, Tool: &call}}
		}
	}
	return nil
}

func (s *anthropicStreamState) startToolUse(index int64, call ToolCall) {
	b := &toolUseBlock{call: call}
	// the start event carries "{}" when the input follows as deltas
	if len(call.Arguments) > 0 && string(call.Arguments) != "{}" {
		b.initial = call.Arguments
	}
	b.call.Arguments = nil
	s.blocks[index] = b
}

func (s *anthropicStreamState) stopToolUse(index int64) (ToolCall, bool) {
	b, ok := s.blocks[index]
	if !ok {
		return ToolCall{}, false
	}
	delete(s.blocks, index)
	call := b.call
	switch {
	case b.input.Len() > 0:
		call.Arguments = json.RawMessage(b.input.String())
	case b.initial != nil:
		call.Arguments = b.initial
	default:
		call.Arguments = json.RawMessage("{}")
	}
	return call, true
}

func buildAnthropicMessages(messages []Message) (string, []anthropic.MessageParam) {
	var systemParts []string
	var out []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if text := collectTextParts(msg.Parts); text != "" {
				systemParts = append(systemParts, text)
			}
		case RoleUser, RoleTool:
			blocks := buildAnthropicBlocks(msg.Parts, false)
			if len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
		case RoleAssistant:
			blocks := buildAnthropicBlocks(msg.Parts, true)
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}

	return strings.Join(systemParts, "\n\n"), out
}

func buildAnthropicBlocks(parts []Part, allowToolUse bool) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case PartText:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case PartToolCall:
			if allowToolUse && part.ToolCall != nil {
				blocks = append(blocks, anthropic.NewToolUseBlock(part.ToolCall.ID, toolArgsToMap(part.ToolCall.Arguments), part.ToolCall.Name))
			}
		case PartToolResult:
			if part.ToolResult != nil {
				blocks = append(blocks, toolResultBlock(part.ToolResult))
			}
		}
	}
	return blocks
}

func toolResultBlock(result *ToolResult) anthropic.ContentBlockParamUnion {
	text := result.Content
	if text == "" {
		text = "(no output)"
	}
	block := anthropic.ToolResultBlockParam{
		ToolUseID: result.ID,
		IsError:   anthropic.Bool(result.IsError),
		Content: []anthropic.ToolResultBlockParamContentUnion{{
			OfText: &anthropic.TextBlockParam{Text: text},
		}},
	}
	return anthropic.ContentBlockParamUnion{OfToolResult: &block}
}

func buildAnthropicTools(specs []ToolSpec) []anthropic.ToolUnionParam {
	var tools []anthropic.ToolUnionParam
	for _, spec := range specs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: spec.Schema["properties"],
			Required:   requiredFields(spec.Schema),
		}
		tool := anthropic.ToolUnionParamOfTool(inputSchema, spec.Name)
		if spec.Description != "" {
			tool.OfTool.Description = anthropic.String(spec.Description)
		}
		tools = append(tools, tool)
	}
	return tools
}

func toolInputToRaw(input any) json.RawMessage {
	switch v := input.(type) {
	case json.RawMessage:
		return v
	case []byte:
		return json.RawMessage(v)
	case string:
		return json.RawMessage(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return json.RawMessage(data)
	}
}

func maxTokens(requested, fallback int) int64 {
	if requested > 0 {
		return int64(requested)
	}
	return int64(fallback)
}
