package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSplitPartsWithToolCalls(t *testing.T) {
	parts := []Part{
		{Type: PartText, Text: "Let me look"},
		{Type: PartToolCall, ToolCall: &ToolCall{ID: "call-123", Name: "glob", Arguments: []byte(`{"pattern":"*"}`)}},
	}

	text, toolCalls := splitParts(parts)
	if text != "Let me look" {
		t.Errorf("expected text 'Let me look', got %q", text)
	}
	if len(toolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(toolCalls))
	}
	if toolCalls[0].ID != "call-123" || toolCalls[0].Function.Name != "glob" {
		t.Errorf("unexpected tool call %+v", toolCalls[0])
	}
}

func TestBuildCompatMessagesToolRole(t *testing.T) {
	msgs := toCompatMessages([]Message{
		SystemText("sys"),
		UserText("hi"),
		ToolResultMessage("call-1", "glob", "a.go", nil),
		AssistantText(""),
	})
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[2].Role != "tool" || msgs[2].ToolCallID != "call-1" || msgs[2].Content != "a.go" {
		t.Fatalf("unexpected tool message %+v", msgs[2])
	}
}

func TestPendingCallsMergeByIndex(t *testing.T) {
	var pending pendingCalls
	pending.add([]compatCall{{Index: 1, ID: "b", Function: compatCallBody{Name: "second", Arguments: `{}`}}})
	pending.add([]compatCall{{Index: 0, ID: "a", Function: compatCallBody{Name: "first", Arguments: `{"x":`}}})
	pending.add([]compatCall{{Index: 0, Function: compatCallBody{Arguments: `1}`}}})

	calls := pending.done()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "first" || string(calls[0].Arguments) != `{"x":1}` {
		t.Fatalf("unexpected first call %+v", calls[0])
	}
}

func sseServer(t *testing.T, handler func(req compatRequest, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req compatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		handler(req, w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAICompatStreamParsesSSE(t *testing.T) {
	srv := sseServer(t, func(req compatRequest, w http.ResponseWriter) {
		if req.Model != "llama3" || !req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		chunks := []string{
			`{"choices":[{"index":0,"delta":{"reasoning_content":"hmm"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":2}}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	p := NewOpenAICompatProvider(srv.URL+"/v1/", "", "llama3", "Ollama")
	resp, err := Generate(context.Background(), p, Request{Messages: []Message{UserText("hi")}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "Hello" {
		t.Fatalf("text=%q", resp.Text)
	}
	if resp.Reasoning != "hmm" {
		t.Fatalf("reasoning=%q", resp.Reasoning)
	}
	if resp.Usage == nil || resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 2 {
		t.Fatalf("usage=%+v", resp.Usage)
	}
}

func TestOpenAICompatStreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOpenAICompatProvider(srv.URL+"/v1", "", "missing", "LM Studio")
	_, err := Generate(context.Background(), p, Request{Messages: []Message{UserText("hi")}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenAICompatStreamInlineError(t *testing.T) {
	srv := sseServer(t, func(req compatRequest, w http.ResponseWriter) {
		fmt.Fprint(w, "data: {\"error\":{\"type\":\"server\",\"message\":\"out of memory\"}}\n\n")
	})

	p := NewOpenAICompatProvider(srv.URL+"/v1", "", "m", "Ollama")
	_, err := Generate(context.Background(), p, Request{Messages: []Message{UserText("hi")}})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected inline error, got %v", err)
	}
}

func TestOpenAICompatEmptyConversation(t *testing.T) {
	p := NewOpenAICompatProvider("http://127.0.0.1:1/v1", "", "m", "Ollama")
	_, err := Generate(context.Background(), p, Request{})
	if err != ErrNoMessages {
		t.Fatalf("expected ErrNoMessages, got %v", err)
	}
}

func TestSSEReader(t *testing.T) {
	body := ": keep-alive\n\nevent: error\ndata: {\"a\":1}\n\ndata: first\ndata: second\n\ndata:tail"
	r := newSSEReader(strings.NewReader(body))

	msg, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Event != "error" || msg.Data != `{"a":1}` {
		t.Errorf("first = %+v", msg)
	}

	msg, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Event != "" || msg.Data != "first\nsecond" {
		t.Errorf("second = %+v", msg)
	}

	msg, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Data != "tail" {
		t.Errorf("third = %+v", msg)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestOpenAICompatStreamToolCalls(t *testing.T) {
	srv := sseServer(t, func(req compatRequest, w http.ResponseWriter) {
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "grep" {
			t.Errorf("tools = %+v", req.Tools)
		}
		chunks := []string{
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"grep","arguments":"{\"pat"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"tern\":\"x\"}"}}]}}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	p := NewOpenAICompatProvider(srv.URL+"/v1", "", "qwen", "Ollama")
	resp, err := Generate(context.Background(), p, Request{
		Messages: []Message{UserText("find x")},
		Tools:    []ToolSpec{{Name: "grep", Schema: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "grep" || string(call.Arguments) != `{"pattern":"x"}` {
		t.Errorf("call = %+v", call)
	}
}

func TestOpenAICompatStatusErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAICompatProvider(srv.URL, "", "m", "Gateway")
	_, err := Generate(context.Background(), p, Request{Messages: []Message{UserText("hi")}})
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if status.StatusCode != http.StatusTooManyRequests || status.RetryAfter != 3*time.Second {
		t.Errorf("status = %+v", status)
	}
	if !isRetryable(err) {
		t.Error("429 should be retryable")
	}
	if isRetryable(&StatusError{Provider: "x", StatusCode: http.StatusBadRequest, Body: "rate limit"}) {
		t.Error("400 should not be retryable even when the body mentions a rate limit")
	}
}
