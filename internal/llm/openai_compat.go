package llm

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// compatTimeout bounds a whole streamed completion. Local models can be slow.
const compatTimeout = 10 * time.Minute

var compatHTTPClient = &http.Client{Timeout: compatTimeout}

// OpenAICompatProvider talks to any /v1/chat/completions server: Ollama,
// LM Studio, vLLM, llama.cpp and hosted gateways. Many of these models have
// no reliable structured tool calling, so the provider does not advertise
// it; tool calls that do arrive are still passed through.
type OpenAICompatProvider struct {
	endpoint string
	apiKey   string // sent as a bearer token when set
	model    string
	label    string // "Ollama", "LM Studio", ...
	headers  map[string]string
	client   *http.Client
}

func NewOpenAICompatProvider(baseURL, apiKey, model, label string) *OpenAICompatProvider {
	return NewOpenAICompatProviderWithHeaders(baseURL, apiKey, model, label, nil)
}

func NewOpenAICompatProviderWithHeaders(baseURL, apiKey, model, label string, headers map[string]string) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		endpoint: strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:   apiKey,
		model:    model,
		label:    label,
		headers:  headers,
		client:   compatHTTPClient,
	}
}

func (p *OpenAICompatProvider) Name() string {
	return fmt.Sprintf("%s (%s)", p.label, p.model)
}

func (p *OpenAICompatProvider) Capabilities() Capabilities {
	return Capabilities{ToolCalls: false, Reasoning: true}
}

// Wire types for the chat completions API.
type (
	compatRequest struct {
		Model         string         `json:"model"`
		Messages      []compatMsg    `json:"messages"`
		Tools         []compatTool   `json:"tools,omitempty"`
		Temperature   *float64       `json:"temperature,omitempty"`
		MaxTokens     *int           `json:"max_tokens,omitempty"`
		Stream        bool           `json:"stream"`
		StreamOptions *compatOptions `json:"stream_options,omitempty"`
	}
	compatOptions struct {
		IncludeUsage bool `json:"include_usage"`
	}
	compatMsg struct {
		Role       string       `json:"role"`
		Content    string       `json:"content,omitempty"`
		ToolCalls  []compatCall `json:"tool_calls,omitempty"`
		ToolCallID string       `json:"tool_call_id,omitempty"`
	}
	compatTool struct {
		Type     string         `json:"type"`
		Function compatFunction `json:"function"`
	}
	compatFunction struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	}
	compatCall struct {
		Index    int            `json:"index"`
		ID       string         `json:"id,omitempty"`
		Type     string         `json:"type,omitempty"`
		Function compatCallBody `json:"function"`
	}
	compatCallBody struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	}

	compatChunk struct {
		Choices []struct {
			Delta struct {
				Content          string       `json:"content"`
				ReasoningContent string       `json:"reasoning_content"` // vLLM, llama.cpp
				Reasoning        string       `json:"reasoning"`         // Ollama
				ToolCalls        []compatCall `json:"tool_calls"`
			} `json:"delta"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
)

func (p *OpenAICompatProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		body, err := p.buildRequest(req)
		if err != nil {
			return err
		}
		resp, err := p.post(ctx, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return p.readStream(ctx, resp.Body, events)
	}), nil
}

func (p *OpenAICompatProvider) buildRequest(req Request) (*compatRequest, error) {
	messages := toCompatMessages(req.Messages)
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	tools, err := toCompatTools(req.Tools)
	if err != nil {
		return nil, err
	}
	out := &compatRequest{
		Model:         chooseModel(req.Model, p.model),
		Messages:      messages,
		Tools:         tools,
		Stream:        true,
		StreamOptions: &compatOptions{IncludeUsage: true},
	}
	if req.Temperature > 0 {
		t := float64(req.Temperature)
		out.Temperature = &t
	}
	if req.MaxOutputTokens > 0 {
		n := req.MaxOutputTokens
		out.MaxTokens = &n
	}
	return out, nil
}

func (p *OpenAICompatProvider) post(ctx context.Context, body *compatRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	slog.Debug("compat request", "provider", p.label, "url", p.endpoint,
		"model", body.Model, "messages", len(body.Messages), "tools", len(body.Tools))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %w", p.label, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, newStatusError(p.label, resp, msg)
	}
	return resp, nil
}

// readStream turns SSE chunks into events. Tool call fragments are merged
// and emitted once the stream ends.
func (p *OpenAICompatProvider) readStream(ctx context.Context, r io.Reader, events chan<- Event) error {
	sse := newSSEReader(r)
	var (
		calls pendingCalls
		usage *Usage
	)
	send := func(ev Event) error {
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		msg, err := sse.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%s streaming error: %w", p.label, err)
		}
		if msg.Data == "[DONE]" {
			break
		}

		var chunk compatChunk
		if err := json.Unmarshal([]byte(msg.Data), &chunk); err != nil {
			slog.Debug("skipping undecodable chunk", "provider", p.label, "data", truncate(msg.Data, 200))
			continue
		}
		if chunk.Error != nil || msg.Event == "error" {
			reason := "unknown error"
			if chunk.Error != nil && chunk.Error.Message != "" {
				reason = chunk.Error.Message
			}
			return fmt.Errorf("%s API error: %s", p.label, reason)
		}
		if chunk.Usage != nil {
			usage = &Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}

		for _, choice := range chunk.Choices {
			d := choice.Delta
			if thought := cmp.Or(d.ReasoningContent, d.Reasoning); thought != "" {
				if err := send(Event{Type: EventReasoningDelta, Text: thought}); err != nil {
					return err
				}
			}
			if d.Content != "" {
				if err := send(Event{Type: EventTextDelta, Text: d.Content}); err != nil {
					return err
				}
			}
			calls.add(d.ToolCalls)
		}
	}

	for _, call := range calls.done() {
		if err := send(Event{Type: EventToolCall, Tool: &call}); err != nil {
			return err
		}
	}
	if usage != nil {
		if err := send(Event{Type: EventUsage, Use: usage}); err != nil {
			return err
		}
	}
	return send(Event{Type: EventDone})
}

func toCompatMessages(messages []Message) []compatMsg {
	var out []compatMsg
	for _, msg := range messages {
		if msg.Role == RoleTool {
			for _, part := range msg.Parts {
				if part.Type == PartToolResult && part.ToolResult != nil {
					out = append(out, compatMsg{Role: "tool", Content: part.ToolResult.Content, ToolCallID: part.ToolResult.ID})
				}
			}
			continue
		}
		text, calls := splitParts(msg.Parts)
		switch {
		case msg.Role == RoleAssistant && len(calls) > 0:
			out = append(out, compatMsg{Role: "assistant", Content: text, ToolCalls: calls})
		case text != "":
			out = append(out, compatMsg{Role: string(msg.Role), Content: text})
		}
	}
	return out
}

func splitParts(parts []Part) (string, []compatCall) {
	var (
		text  strings.Builder
		calls []compatCall
	)
	for _, part := range parts {
		switch {
		case part.Type == PartText:
			text.WriteString(part.Text)
		case part.Type == PartToolCall && part.ToolCall != nil:
			calls = append(calls, compatCall{
				ID:   part.ToolCall.ID,
				Type: "function",
				Function: compatCallBody{
					Name:      part.ToolCall.Name,
					Arguments: string(part.ToolCall.Arguments),
				},
			})
		}
	}
	return text.String(), calls
}

func toCompatTools(specs []ToolSpec) ([]compatTool, error) {
	var tools []compatTool
	for _, spec := range specs {
		params, err := json.Marshal(spec.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshal tool schema %s: %w", spec.Name, err)
		}
		tools = append(tools, compatTool{
			Type:     "function",
			Function: compatFunction{Name: spec.Name, Description: spec.Description, Parameters: params},
		})
	}
	return tools, nil
}

// pendingCalls merges streamed tool call fragments that share an index.
type pendingCalls struct {
	calls []*pendingCall
}

type pendingCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

func (p *pendingCalls) add(fragments []compatCall) {
	for _, f := range fragments {
		i := slices.IndexFunc(p.calls, func(c *pendingCall) bool { return c.index == f.Index })
		if i < 0 {
			p.calls = append(p.calls, &pendingCall{index: f.Index})
			i = len(p.calls) - 1
		}
		c := p.calls[i]
		c.id = cmp.Or(f.ID, c.id)
		c.name = cmp.Or(f.Function.Name, c.name)
		c.args.WriteString(f.Function.Arguments)
	}
}

func (p *pendingCalls) done() []ToolCall {
	slices.SortFunc(p.calls, func(a, b *pendingCall) int { return cmp.Compare(a.index, b.index) })
	out := make([]ToolCall, 0, len(p.calls))
	for _, c := range p.calls {
		out = append(out, ToolCall{ID: c.id, Name: c.name, Arguments: json.RawMessage(c.args.String())})
	}
	return out
}
