package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

const (
	retryAdvice = "The tool call failed. Decide whether the error is retryable. " +
		"Do not repeat an identical failing call more than two times; change the arguments or explain the problem instead."
	continueAdvice = "Check whether the task is now complete. If it is, answer the user directly. " +
		"Otherwise emit the next tool call."
)

// HistoryBuilder appends one round's turns to the conversation.
type HistoryBuilder struct {
	strategy Strategy
}

func NewHistoryBuilder(strategy Strategy) HistoryBuilder {
	return HistoryBuilder{strategy: strategy}
}

// Append adds one assistant turn and one tool turn per result, in call order.
func (b HistoryBuilder) Append(history []llm.Message, round Round, results []ToolCallResult) []llm.Message {
	calls := make([]llm.ToolCall, 0, len(round.Calls))
	for _, c := range round.Calls {
		calls = append(calls, llm.ToolCall{
			ID:         c.ID,
			Name:       c.Name,
			Arguments:  marshalArgs(c.Arguments),
			ThoughtSig: c.thoughtSig,
		})
	}

	if b.strategy == StrategyPrompt {
		// the model sees its own raw output, tool markup included
		history = append(history, llm.AssistantText(round.Raw))
	} else {
		history = append(history, llm.AssistantToolCalls(round.Text, calls))
	}

	for i, res := range results {
		var sig []byte
		if i < len(calls) {
			sig = calls[i].ThoughtSig
		}
		content := FormatResult(res.Result)
		if b.strategy == StrategyPrompt {
			content = promptToolTurn(res, content)
		}
		if res.IsError {
			history = append(history, llm.ToolErrorMessage(res.ID, res.Name, content, sig))
		} else {
			history = append(history, llm.ToolResultMessage(res.ID, res.Name, content, sig))
		}
	}
	return history
}

// promptToolTurn wraps a result for models without native tool calling.
func promptToolTurn(res ToolCallResult, content string) string {
	var b strings.Builder
	status := "ok"
	if res.IsError {
		status = "error"
	}
	fmt.Fprintf(&b, "<tool_result name=%q status=%q>\n%s\n</tool_result>\n\n", res.Name, status, content)
	if res.IsError {
		b.WriteString(retryAdvice)
		b.WriteString(" ")
	}
	b.WriteString(continueAdvice)
	return b.String()
}

// FormatResult renders a tool result as text for the model.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case fmt.Stringer:
		return r.String()
	case error:
		return r.Error()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func marshalArgs(args map[string]any) json.RawMessage {
	if args == nil {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
