package agent

import (
	"context"
	"errors"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// ErrEmptyResponse is reported when a model round produced no output at all.
var ErrEmptyResponse = errors.New("model returned an empty response")

// EmitFunc hands one event to the consumer. It fails once the consumer has
// abandoned the stream.
type EmitFunc func(Event) error

// InvokeRequest is the input of one model round.
type InvokeRequest struct {
	Model           string
	Messages        []llm.Message
	Tools           []llm.ToolSpec
	MaxOutputTokens int
	Temperature     float32
}

// Round is what one model invocation produced.
type Round struct {
	Text  string // text surfaced to the consumer
	Raw   string // unprocessed model text
	Calls []ToolCallRequest
	Usage llm.Usage
}

// ModelInvoker performs one model round, emitting events as output arrives.
type ModelInvoker interface {
	Strategy() Strategy
	Invoke(ctx context.Context, req InvokeRequest, emit EmitFunc) (Round, error)
}

// channels tracks the open text and thinking channels for invokers that map
// provider deltas to events directly.
type channels struct {
	textOpen     bool
	thinkingOpen bool
}

func (c *channels) text(s string) []Event {
	var out []Event
	if c.thinkingOpen {
		out = append(out, &ThinkingEnd{})
		c.thinkingOpen = false
	}
	if !c.textOpen {
		out = append(out, &TextStart{})
		c.textOpen = true
	}
	return append(out, &TextDelta{Text: s})
}

func (c *channels) thinking(s string) []Event {
	var out []Event
	if c.textOpen {
		out = append(out, &TextEnd{})
		c.textOpen = false
	}
	if !c.thinkingOpen {
		out = append(out, &ThinkingStart{})
		c.thinkingOpen = true
	}
	return append(out, &ThinkingDelta{Text: s})
}

func (c *channels) close() []Event {
	var out []Event
	if c.thinkingOpen {
		out = append(out, &ThinkingEnd{})
		c.thinkingOpen = false
	}
	if c.textOpen {
		out = append(out, &TextEnd{})
		c.textOpen = false
	}
	return out
}

func emitAll(emit EmitFunc, evs []Event) error {
	for _, ev := range evs {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}
