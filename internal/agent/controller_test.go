package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
	"github.com/n0tssss/MCPLink-sub000/internal/testutil"
)

const searchCall = `<tool_call>{"name":"search","arguments":{"q":"x"}}</tool_call>`

func newTestController(p llm.Provider, tools ToolProvider, opts ...func(*Options)) *Controller {
	o := Options{
		Provider: p,
		Tools:    tools,
		Model:    "test-model",
		Now:      stepClock(time.Millisecond),
		NewID:    func() string { return "call-1" },
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewController(o)
}

func runChat(t *testing.T, c *Controller, req ChatRequest) []Event {
	t.Helper()
	return Collect(c.Chat(context.Background(), req))
}

func TestChatPromptToolRound(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse(searchCall).AddTextResponse("Done")
	tools := testutil.NewToolSet(testutil.NewMockTool("search", "42"))

	evs := runChat(t, newTestController(p, tools), ChatRequest{Message: "find x"})
	assertEvents(t, "events", evs, []string{
		"iteration_start:1",
		"tool_call_start:search",
		"tool_executing:search",
		"tool_result:search=42(err=false)",
		"iteration_end:1",
		"iteration_start:2",
		"text_start", `text_delta:"Done"`, "text_end",
		"iteration_end:2",
		"complete:2",
	})

	calls := tools.Calls()
	if len(calls) != 1 || calls[0].Args["q"] != "x" {
		t.Fatalf("tool calls = %+v", calls)
	}
	start := evs[1].(*ToolCallStart)
	result := evs[3].(*ToolResult)
	if start.ID != "call-1" || result.ID != start.ID {
		t.Errorf("ids: start %q result %q", start.ID, result.ID)
	}

	done := evs[len(evs)-1].(*Complete)
	if done.Usage == nil || done.Usage.InputTokens != 20 || done.Usage.OutputTokens != 10 {
		t.Errorf("usage = %+v, want 20/10", done.Usage)
	}
	if done.TotalDurationMs <= 0 {
		t.Errorf("TotalDurationMs = %d", done.TotalDurationMs)
	}

	// second round sees the raw call and the wrapped result as plain turns
	second := p.Request(1)
	if len(second.Tools) != 0 {
		t.Error("prompt mode must not send native tool specs")
	}
	msgs := second.Messages
	last := msgs[len(msgs)-1]
	if last.Role != llm.RoleUser || !strings.Contains(last.Text(), `<tool_result name="search" status="ok">`) {
		t.Errorf("last message = %+v", last)
	}
	if msgs[len(msgs)-2].Text() != searchCall {
		t.Errorf("assistant turn = %q", msgs[len(msgs)-2].Text())
	}
}

func TestChatToolErrorContinues(t *testing.T) {
	p := testutil.NewMockProvider("mock").
		AddTextResponse(`<tool_call>{"name":"fetch","arguments":{}}</tool_call>`).
		AddTextResponse("Sorry, the network is down.")
	fetch := testutil.NewMockToolWithSchema("fetch", "fetch a url", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("network down")
	})

	evs := runChat(t, newTestController(p, testutil.NewToolSet(fetch)), ChatRequest{Message: "go"})
	assertEvents(t, "events", evs, []string{
		"iteration_start:1",
		"tool_call_start:fetch",
		"tool_executing:fetch",
		"tool_result:fetch=network down(err=true)",
		"iteration_end:1",
		"iteration_start:2",
		"text_start", `text_delta:"Sorry, the network is down."`, "text_end",
		"iteration_end:2",
		"complete:2",
	})
}

func TestChatIterationCap(t *testing.T) {
	for _, max := range []int{1, 3} {
		p := testutil.NewMockProvider("mock").AddTextResponse(searchCall).WithRepeatLast()
		tools := testutil.NewToolSet(testutil.NewMockTool("search", "42"))

		evs := runChat(t, newTestController(p, tools), ChatRequest{Message: "loop", MaxIterations: max})
		var starts, ends int
		for _, ev := range evs {
			switch ev.(type) {
			case *IterationStart:
				starts++
			case *IterationEnd:
				ends++
			case *Error:
				t.Fatalf("max %d: unexpected error event %+v", max, ev)
			}
		}
		if starts != max || ends != max {
			t.Errorf("max %d: %d starts, %d ends", max, starts, ends)
		}
		done, ok := evs[len(evs)-1].(*Complete)
		if !ok || done.TotalIterations != max {
			t.Errorf("max %d: last event %+v", max, evs[len(evs)-1])
		}
		if p.RequestCount() != max {
			t.Errorf("max %d: %d model calls", max, p.RequestCount())
		}
	}
}

func TestChatDefaultIterationLimit(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse(searchCall).WithRepeatLast()
	tools := testutil.NewToolSet(testutil.NewMockTool("search", "42"))
	evs := runChat(t, newTestController(p, tools), ChatRequest{Message: "loop"})
	if done := evs[len(evs)-1].(*Complete); done.TotalIterations != DefaultMaxIterations {
		t.Errorf("TotalIterations = %d, want %d", done.TotalIterations, DefaultMaxIterations)
	}
}

func TestChatStreamErrorEndsLoop(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddError(errors.New("boom")).AddTextResponse("never")
	evs := runChat(t, newTestController(p, nil), ChatRequest{Message: "hi"})
	assertEvents(t, "events", evs, []string{"iteration_start:1", "error:boom", "iteration_end:1", "complete:1"})
	if p.RequestCount() != 1 {
		t.Errorf("model called %d times after error", p.RequestCount())
	}
	if e := evs[1].(*Error); e.Err == nil || e.Err.Error() != "boom" {
		t.Errorf("Error.Err = %v", e.Err)
	}
}

func TestChatPartialTextThenError(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTurn(testutil.MockTurn{Chunks: []string{"Half an answer"}, Err: errors.New("reset")})
	evs := runChat(t, newTestController(p, nil), ChatRequest{Message: "hi"})
	assertEvents(t, "events", evs, []string{
		"iteration_start:1",
		"text_start", `text_delta:"Half an answer"`, "text_end",
		"error:reset",
		"iteration_end:1",
		"complete:1",
	})
}

func TestChatEmptyResponse(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse("")
	evs := runChat(t, newTestController(p, nil), ChatRequest{Message: "hi"})
	e, ok := evs[1].(*Error)
	if !ok || !errors.Is(e.Err, ErrEmptyResponse) {
		t.Fatalf("events = %q", describe(evs))
	}
	if _, ok := evs[len(evs)-1].(*Complete); !ok {
		t.Fatal("missing Complete")
	}
}

func TestChatMalformedCallFallsBackToText(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse("<tool_call>{oops}</tool_call>")
	evs := runChat(t, newTestController(p, testutil.NewToolSet(testutil.NewMockTool("search", "42"))), ChatRequest{Message: "hi"})
	assertEvents(t, "events", evs, []string{
		"iteration_start:1",
		"text_start", `text_delta:"{oops}"`, "text_end",
		"iteration_end:1",
		"complete:1",
	})
}

func TestChatNativeMode(t *testing.T) {
	p := testutil.NewMockProvider("mock").
		AddTurn(testutil.MockTurn{
			Reasoning: "need data",
			Text:      "Let me look.",
			ToolCalls: []llm.ToolCall{
				{Name: "search", Arguments: []byte(`{"q":"x"}`)},
				{Name: "search", Arguments: []byte(`{"q":"y"}`)},
			},
		}).
		AddTextResponse("All done")
	tools := testutil.NewToolSet(testutil.NewMockTool("search", "42"))
	sel, err := NewStrategySelector("", []Rule{{Pattern: "test-*", Strategy: StrategyNative}})
	if err != nil {
		t.Fatal(err)
	}
	c := newTestController(p, tools, func(o *Options) { o.Selector = sel })

	evs := runChat(t, c, ChatRequest{Message: "find"})
	assertEvents(t, "events", evs, []string{
		"iteration_start:1",
		"thinking_start", `thinking_delta:"need data"`, "thinking_end",
		"text_start", `text_delta:"Let me look."`, "text_end",
		"tool_call_start:search",
		"tool_call_start:search",
		"tool_executing:search",
		"tool_result:search=42(err=false)",
		"tool_executing:search",
		"tool_result:search=42(err=false)",
		"iteration_end:1",
		"iteration_start:2",
		"text_start", `text_delta:"All done"`, "text_end",
		"iteration_end:2",
		"complete:2",
	})

	calls := tools.Calls()
	if len(calls) != 2 || calls[0].Args["q"] != "x" || calls[1].Args["q"] != "y" {
		t.Fatalf("calls out of order: %+v", calls)
	}

	first := p.Request(0)
	if len(first.Tools) != 1 || first.Tools[0].Name != "search" {
		t.Errorf("native request tools = %+v", first.Tools)
	}
	msgs := p.Request(1).Messages
	if len(msgs) != 4 {
		t.Fatalf("second request has %d messages, want 4", len(msgs))
	}
	ids := []string{msgs[2].Parts[0].ToolResult.ID, msgs[3].Parts[0].ToolResult.ID}
	if ids[0] != "toolcall-1" || ids[1] != "toolcall-2" {
		t.Errorf("tool result ids = %v", ids)
	}
}

func TestChatHistoryAndSystemPrompt(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse("ok")
	c := newTestController(p, nil, func(o *Options) { o.SystemPrompt = "be brief" })
	runChat(t, c, ChatRequest{
		Message: "now",
		History: []Turn{{Role: llm.RoleUser, Content: "earlier"}, {Role: llm.RoleAssistant, Content: "reply"}},
	})

	msgs := p.Request(0).Messages
	want := []struct {
		role llm.Role
		text string
	}{
		{llm.RoleSystem, "be brief"},
		{llm.RoleUser, "earlier"},
		{llm.RoleAssistant, "reply"},
		{llm.RoleUser, "now"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Text() != w.text {
			t.Errorf("message %d = %s %q, want %s %q", i, msgs[i].Role, msgs[i].Text(), w.role, w.text)
		}
	}
}

func TestChatAllowedTools(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse("ok")
	tools := testutil.NewToolSet(testutil.NewMockTool("search", "1"), testutil.NewMockTool("fetch", "2"))
	runChat(t, newTestController(p, tools), ChatRequest{Message: "hi", AllowedTools: []string{"fetch"}})

	preamble := p.Request(0).Messages[0]
	if preamble.Role != llm.RoleSystem {
		t.Fatalf("first message role = %s", preamble.Role)
	}
	if !strings.Contains(preamble.Text(), "## fetch") || strings.Contains(preamble.Text(), "## search") {
		t.Errorf("preamble lists wrong tools:\n%s", preamble.Text())
	}
}

func TestChatListToolsFailure(t *testing.T) {
	tools := testutil.NewToolSet()
	tools.ListErr = errors.New("registry offline")
	p := testutil.NewMockProvider("mock")
	evs := runChat(t, newTestController(p, tools), ChatRequest{Message: "hi"})
	assertEvents(t, "events", evs, []string{"error:list tools: registry offline", "complete:0"})
}

func TestChatCancelledContext(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse("never")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	evs := Collect(newTestController(p, nil).Chat(ctx, ChatRequest{Message: "hi"}))
	assertEvents(t, "events", evs, []string{"error:context canceled", "complete:0"})
	if p.RequestCount() != 0 {
		t.Error("model called after cancellation")
	}
}

func TestChatCloseAbandonsStream(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse(searchCall).WithRepeatLast()
	tools := testutil.NewToolSet(testutil.NewMockTool("search", "42"))
	s := newTestController(p, tools).Chat(context.Background(), ChatRequest{Message: "loop", MaxIterations: 50})

	ev, err := s.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ev.(*IterationStart); !ok {
		t.Fatalf("first event = %s", ev.Kind())
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if p.RequestCount() > 2 {
		t.Errorf("loop kept running after Close: %d requests", p.RequestCount())
	}
	if _, err := s.Recv(); err == nil {
		t.Error("Recv after Close should fail")
	}
}

func TestChatEventTimestamps(t *testing.T) {
	p := testutil.NewMockProvider("mock").AddTextResponse("hi")
	evs := runChat(t, newTestController(p, nil), ChatRequest{Message: "hi"})
	var prev time.Time
	for _, ev := range evs {
		if ev.Timestamp().IsZero() || ev.Timestamp().Before(prev) {
			t.Fatalf("bad timestamp on %s: %v", ev.Kind(), ev.Timestamp())
		}
		prev = ev.Timestamp()
	}
}
