package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4.1"

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider authenticated with an API key.
// Extra request options (e.g. option.WithBaseURL) are passed to the client.
func NewOpenAIProvider(apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key not configured: set OPENAI_API_KEY")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIProvider{client: &client, model: model}, nil
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("OpenAI (%s)", p.model)
}

func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{ToolCalls: true}
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		messages := buildOpenAIMessages(req.Messages)
		if len(messages) == 0 {
			return ErrNoMessages
		}

		params := openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(chooseModel(req.Model, p.model)),
			Messages: messages,
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		if tools := buildOpenAITools(req.Tools); len(tools) > 0 {
			params.Tools = tools
			params.ParallelToolCalls = openai.Bool(false)
		}
		if req.MaxOutputTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
		}
		if req.Temperature > 0 {
			params.Temperature = openai.Float(float64(req.Temperature))
		}

		slog.Debug("openai stream request", "model", params.Model, "messages", len(messages), "tools", len(req.Tools))

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		var lastUsage *Usage
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if tool, ok := acc.JustFinishedToolCall(); ok {
				events <- Event{Type: EventToolCall, Tool: &ToolCall{
					ID:        tool.ID,
					Name:      tool.Name,
					Arguments: []byte(tool.Arguments),
				}}
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				events <- Event{Type: EventTextDelta, Text: chunk.Choices[0].Delta.Content}
			}
			if chunk.Usage.TotalTokens > 0 {
				lastUsage = &Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("openai streaming error: %w", err)
		}
		if lastUsage != nil {
			events <- Event{Type: EventUsage, Use: lastUsage}
		}
		events <- Event{Type: EventDone}
		return nil
	}), nil
}

func buildOpenAITools(specs []ToolSpec) []openai.ChatCompletionToolParam {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		fn := shared.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: openai.String(spec.Description),
		}
		if len(spec.Schema) > 0 {
			fn.Parameters = shared.FunctionParameters(spec.Schema)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if text := collectTextParts(msg.Parts); text != "" {
				out = append(out, openai.SystemMessage(text))
			}
		case RoleUser:
			if text := collectTextParts(msg.Parts); text != "" {
				out = append(out, openai.UserMessage(text))
			}
		case RoleTool:
			for _, part := range msg.Parts {
				if part.Type != PartToolResult || part.ToolResult == nil {
					continue
				}
				content := part.ToolResult.Content
				if content == "" {
					content = "(no output)"
				}
				out = append(out, openai.ToolMessage(content, part.ToolResult.ID))
			}
		case RoleAssistant:
			var text strings.Builder
			var calls []openai.ChatCompletionMessageToolCallParam
			for _, part := range msg.Parts {
				switch part.Type {
				case PartText:
					text.WriteString(part.Text)
				case PartToolCall:
					if part.ToolCall == nil {
						continue
					}
					args := string(part.ToolCall.Arguments)
					if args == "" {
						args = "{}"
					}
					calls = append(calls, openai.ChatCompletionMessageToolCallParam{
						ID: part.ToolCall.ID,
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      part.ToolCall.Name,
							Arguments: args,
						},
					})
				}
			}
			if len(calls) == 0 {
				if text.Len() > 0 {
					out = append(out, openai.AssistantMessage(text.String()))
				}
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if text.Len() > 0 {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text.String())}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}
