package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/n0tssss/MCPLink-sub000/internal/agent"
	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

func renderAll(t *testing.T, opts RenderOptions, evs ...agent.Event) string {
	t.Helper()
	var buf bytes.Buffer
	r := NewRenderer(&buf, NewStyles(&buf, nil), opts)
	for _, ev := range evs {
		if err := r.Render(ev); err != nil {
			t.Fatal(err)
		}
	}
	return buf.String()
}

func TestRendererTranscript(t *testing.T) {
	got := renderAll(t, RenderOptions{},
		&agent.IterationStart{Iteration: 1},
		&agent.ThinkingStart{},
		&agent.ThinkingDelta{Text: "plan"},
		&agent.ThinkingEnd{},
		&agent.TextStart{},
		&agent.TextDelta{Text: "Looking"},
		&agent.TextDelta{Text: " it up."},
		&agent.TextEnd{},
		&agent.ToolCallStart{ID: "1", Name: "search", Arguments: map[string]any{"q": "x"}},
		&agent.ToolExecuting{ID: "1", Name: "search"},
		&agent.ToolResult{ToolCallResult: agent.ToolCallResult{ID: "1", Name: "search", Result: "line one\nline two", DurationMs: 12}},
		&agent.Complete{TotalIterations: 1, TotalDurationMs: 1500, Usage: &llm.Usage{InputTokens: 10, OutputTokens: 5}},
	)
	want := "thinking: plan\n" +
		"Looking it up.\n" +
		`→ search {"q":"x"}` + "\n" +
		"✓ search (12ms) line one line two\n" +
		"done: 1 iteration in 1.5s, 10 in / 5 out tokens\n"
	if got != want {
		t.Errorf("transcript:\n%s\nwant:\n%s", got, want)
	}
}

func TestRendererToolError(t *testing.T) {
	got := renderAll(t, RenderOptions{MaxResult: 10},
		&agent.ToolResult{ToolCallResult: agent.ToolCallResult{Name: "fetch", Result: "connection refused by host", IsError: true, DurationMs: 3}},
		&agent.Error{Message: "model returned an empty response"},
	)
	want := "✗ fetch (3ms) connect...\nerror: model returned an empty response\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRendererTodos(t *testing.T) {
	got := renderAll(t, RenderOptions{},
		&agent.TodoStart{ListID: "t", Title: "Plan"},
		&agent.TodoItemAdd{ListID: "t", Item: agent.TodoItem{ID: "1", Content: "fetch data", Status: agent.TodoPending}},
		&agent.TodoItemUpdate{ListID: "t", ItemID: "1", Status: agent.TodoCompleted, Result: "ok"},
		&agent.TodoItemUpdate{ListID: "t", ItemID: "9", Status: agent.TodoFailed},
	)
	want := "Plan\n  [○] fetch data\n  [✓] fetch data (ok)\n  [✗] #9\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRendererIterationsAndLineBreaks(t *testing.T) {
	got := renderAll(t, RenderOptions{Iterations: true},
		&agent.IterationStart{Iteration: 2},
		&agent.TextStart{},
		&agent.TextDelta{Text: "partial"},
		&agent.Error{Message: "boom"},
	)
	want := "── iteration 2 ──\npartial\nerror: boom\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRendererMarkdownBuffersUntilTextEnd(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, NewStyles(&buf, nil), RenderOptions{Markdown: true})
	r.Render(&agent.TextStart{})
	r.Render(&agent.TextDelta{Text: "# Title\n\nSome **bold** text."})
	if buf.Len() != 0 {
		t.Fatalf("markdown written before TextEnd: %q", buf.String())
	}
	r.Render(&agent.TextEnd{})
	out := buf.String()
	if !strings.Contains(out, "Title") || !strings.Contains(out, "bold") || strings.Contains(out, "**") {
		t.Errorf("markdown output = %q", out)
	}
}

func TestThemeFromConfig(t *testing.T) {
	theme := ThemeFromConfig(ThemeConfig{Preset: "nord", Error: "9"})
	if theme.Primary != "#88c0d0" {
		t.Errorf("Primary = %q, want nord frost cyan", theme.Primary)
	}
	if theme.Error != "9" {
		t.Errorf("Error override = %q", theme.Error)
	}
	if ThemeFromConfig(ThemeConfig{Preset: "nope"}).Primary != DefaultTheme().Primary {
		t.Error("unknown preset should fall back to the default")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 5, "ab..."},
		{"héllo wörld", 6, "hél..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
