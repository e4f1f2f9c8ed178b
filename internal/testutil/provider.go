package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// MockTurn scripts one provider response.
type MockTurn struct {
	Text      string
	Chunks    []string // streamed as separate deltas; overrides Text
	Reasoning string
	ToolCalls []llm.ToolCall
	Usage     *llm.Usage
	Err       error // delivered as an error event after the content
	Delay     time.Duration
}

// MockProvider replays scripted turns, one per Stream call.
type MockProvider struct {
	name string
	caps llm.Capabilities

	mu         sync.Mutex
	turns      []MockTurn
	next       int
	repeatLast bool
	Requests   []llm.Request
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name, caps: llm.Capabilities{ToolCalls: true}}
}

func (p *MockProvider) WithCapabilities(caps llm.Capabilities) *MockProvider {
	p.caps = caps
	return p
}

// WithRepeatLast makes the final turn answer every later request.
func (p *MockProvider) WithRepeatLast() *MockProvider {
	p.repeatLast = true
	return p
}

func (p *MockProvider) AddTurn(turn MockTurn) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turn)
	return p
}

func (p *MockProvider) AddTextResponse(text string) *MockProvider {
	return p.AddTurn(MockTurn{Text: text})
}

// AddChunks scripts a text response delivered in the given fragments.
func (p *MockProvider) AddChunks(chunks ...string) *MockProvider {
	return p.AddTurn(MockTurn{Chunks: chunks})
}

func (p *MockProvider) AddToolCall(id, name, args string) *MockProvider {
	return p.AddTurn(MockTurn{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: []byte(args)}}})
}

func (p *MockProvider) AddError(err error) *MockProvider {
	return p.AddTurn(MockTurn{Err: err})
}

// Reset drops recorded requests and rewinds the script.
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.Requests = nil
}

// RequestCount returns the number of Stream calls so far.
func (p *MockProvider) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// Request returns the i-th recorded request.
func (p *MockProvider) Request(i int) llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Requests[i]
}

func (p *MockProvider) Name() string                   { return p.name }
func (p *MockProvider) Capabilities() llm.Capabilities { return p.caps }

func (p *MockProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.next >= len(p.turns) {
		if !p.repeatLast || len(p.turns) == 0 {
			return nil, fmt.Errorf("mock provider %s: no turn scripted for request %d", p.name, len(p.Requests))
		}
		return newTurnStream(ctx, p.turns[len(p.turns)-1]), nil
	}
	turn := p.turns[p.next]
	p.next++
	return newTurnStream(ctx, turn), nil
}

type turnStream struct {
	ctx    context.Context
	delay  time.Duration
	events []llm.Event
	pos    int
	closed bool
}

func newTurnStream(ctx context.Context, turn MockTurn) *turnStream {
	var events []llm.Event
	if turn.Reasoning != "" {
		events = append(events, llm.Event{Type: llm.EventReasoningDelta, Text: turn.Reasoning})
	}
	chunks := turn.Chunks
	if len(chunks) == 0 && turn.Text != "" {
		chunks = []string{turn.Text}
	}
	for _, c := range chunks {
		events = append(events, llm.Event{Type: llm.EventTextDelta, Text: c})
	}
	for i := range turn.ToolCalls {
		call := turn.ToolCalls[i]
		events = append(events, llm.Event{Type: llm.EventToolCall, Tool: &call})
	}
	if turn.Err != nil {
		events = append(events, llm.Event{Type: llm.EventError, Err: turn.Err})
	} else {
		use := turn.Usage
		if use == nil {
			use = &llm.Usage{InputTokens: 10, OutputTokens: 5}
		}
		events = append(events, llm.Event{Type: llm.EventUsage, Use: use}, llm.Event{Type: llm.EventDone})
	}
	return &turnStream{ctx: ctx, delay: turn.Delay, events: events}
}

func (s *turnStream) Recv() (llm.Event, error) {
	if s.closed {
		return llm.Event{}, errors.New("stream closed")
	}
	if s.pos == 0 && s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-s.ctx.Done():
			return llm.Event{}, s.ctx.Err()
		case <-t.C:
		}
	}
	if err := s.ctx.Err(); err != nil {
		return llm.Event{}, err
	}
	if s.pos >= len(s.events) {
		return llm.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *turnStream) Close() error {
	s.closed = true
	return nil
}
