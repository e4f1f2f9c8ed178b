package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Response is the fully drained result of one generation step.
type Response struct {
	Text      string
	Reasoning string
	ToolCalls []ToolCall
	Usage     *Usage
}

// Generate performs one non-incremental generation step by draining a stream.
func Generate(ctx context.Context, provider Provider, req Request) (Response, error) {
	stream, err := provider.Stream(ctx, req)
	if err != nil {
		return Response{}, err
	}
	defer stream.Close()

	var resp Response
	var text, reasoning strings.Builder
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Response{}, err
		}
		switch event.Type {
		case EventTextDelta:
			text.WriteString(event.Text)
		case EventReasoningDelta:
			reasoning.WriteString(event.Text)
		case EventToolCall:
			if event.Tool != nil {
				resp.ToolCalls = append(resp.ToolCalls, *event.Tool)
			}
		case EventUsage:
			if event.Use != nil {
				if resp.Usage == nil {
					resp.Usage = &Usage{}
				}
				resp.Usage.Add(event.Use)
			}
		case EventError:
			if event.Err != nil {
				return Response{}, event.Err
			}
		}
	}
	resp.Text = text.String()
	resp.Reasoning = reasoning.String()
	return resp, nil
}
