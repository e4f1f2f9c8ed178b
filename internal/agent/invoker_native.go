package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// NativeInvoker relies on the provider's structured tool calling.
type NativeInvoker struct {
	provider llm.Provider
}

func NewNativeInvoker(provider llm.Provider) *NativeInvoker {
	return &NativeInvoker{provider: provider}
}

func (n *NativeInvoker) Strategy() Strategy { return StrategyNative }

func (n *NativeInvoker) Invoke(ctx context.Context, req InvokeRequest, emit EmitFunc) (Round, error) {
	stream, err := n.provider.Stream(ctx, llm.Request{
		Model:           req.Model,
		Messages:        req.Messages,
		Tools:           req.Tools,
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
	})
	if err != nil {
		return Round{}, err
	}
	defer stream.Close()

	var (
		ch        channels
		round     Round
		text      strings.Builder
		calls     []llm.ToolCall
		reasoning bool
	)
	fail := func(err error) (Round, error) {
		if emitErr := emitAll(emit, ch.close()); emitErr != nil {
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
			text.WriteString(ev.Text)
			if err := emitAll(emit, ch.text(ev.Text)); err != nil {
				return round, err
			}
		case llm.EventReasoningDelta:
			if ev.Text == "" {
				continue
			}
			reasoning = true
			if err := emitAll(emit, ch.thinking(ev.Text)); err != nil {
				return round, err
			}
		case llm.EventToolCall:
			if ev.Tool != nil {
				calls = append(calls, *ev.Tool)
			}
		case llm.EventUsage:
			round.Usage.Add(ev.Use)
		case llm.EventRetry:
			slog.Debug("provider retry", "provider", n.provider.Name(),
				"attempt", ev.RetryAttempt, "max", ev.RetryMaxAttempts, "wait_secs", ev.RetryWaitSecs)
		case llm.EventError:
			if ev.Err != nil {
				return fail(ev.Err)
			}
		}
	}
	if err := emitAll(emit, ch.close()); err != nil {
		return round, err
	}

	round.Text = text.String()
	round.Raw = round.Text
	calls = dedupeToolCalls(ensureToolCallIDs(calls))
	if round.Text == "" && !reasoning && len(calls) == 0 {
		return round, ErrEmptyResponse
	}

	for _, call := range calls {
		req := ToolCallRequest{
			ID:         call.ID,
			Name:       call.Name,
			Arguments:  decodeToolArgs(call),
			thoughtSig: call.ThoughtSig,
		}
		round.Calls = append(round.Calls, req)
		if err := emit(&ToolCallStart{ID: req.ID, Name: req.Name, Arguments: req.Arguments}); err != nil {
			return round, err
		}
	}
	return round, nil
}

func decodeToolArgs(call llm.ToolCall) map[string]any {
	args := map[string]any{}
	if len(call.Arguments) == 0 {
		return args
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		slog.Warn("tool call arguments are not a JSON object", "tool", call.Name, "error", err)
		return map[string]any{}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args
}

func ensureToolCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	for i := range calls {
		if strings.TrimSpace(calls[i].ID) == "" {
			calls[i].ID = fmt.Sprintf("toolcall-%d", i+1)
		}
	}
	return calls
}

func dedupeToolCalls(calls []llm.ToolCall) []llm.ToolCall {
	if len(calls) < 2 {
		return calls
	}
	seen := make(map[string]struct{}, len(calls))
	out := make([]llm.ToolCall, 0, len(calls))
	for _, call := range calls {
		if _, ok := seen[call.ID]; ok {
			continue
		}
		seen[call.ID] = struct{}{}
		out = append(out, call)
	}
	return out
}
