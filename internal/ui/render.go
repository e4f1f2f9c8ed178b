package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/n0tssss/MCPLink-sub000/internal/agent"
)

// RenderOptions controls how agent events are written.
type RenderOptions struct {
	Markdown   bool // render answer text with glamour at TextEnd
	Width      int  // wrap width for markdown, 0 means 80
	Iterations bool // print a divider at each iteration start
	MaxResult  int  // tool result preview length in runes, 0 means 200
}

// Renderer writes a human-readable transcript of agent events.
type Renderer struct {
	w      io.Writer
	styles *Styles
	opts   RenderOptions

	text      strings.Builder // buffered answer text when rendering markdown
	lineStart bool
	todos     map[string]map[string]string // list id -> item id -> content
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, styles *Styles, opts RenderOptions) *Renderer {
	if styles == nil {
		styles = NewStyles(w, nil)
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.MaxResult <= 0 {
		opts.MaxResult = 200
	}
	return &Renderer{
		w:         w,
		styles:    styles,
		opts:      opts,
		lineStart: true,
		todos:     make(map[string]map[string]string),
	}
}

// Render writes one event.
func (r *Renderer) Render(ev agent.Event) error {
	s := r.styles
	switch e := ev.(type) {
	case *agent.IterationStart:
		if r.opts.Iterations {
			return r.line(s.Muted.Render(fmt.Sprintf("── iteration %d ──", e.Iteration)))
		}
	case *agent.ThinkingStart:
		return r.write(s.Thinking.Render("thinking: "))
	case *agent.ThinkingDelta:
		return r.write(s.Thinking.Render(e.Text))
	case *agent.ThinkingEnd:
		return r.endLine()
	case *agent.TextStart:
		r.text.Reset()
	case *agent.TextDelta:
		if r.opts.Markdown {
			r.text.WriteString(e.Text)
			return nil
		}
		return r.write(e.Text)
	case *agent.TextEnd:
		if r.opts.Markdown {
			out := RenderMarkdown(r.styles.Theme(), r.text.String(), r.opts.Width)
			r.text.Reset()
			if out == "" {
				return nil
			}
			return r.line(out)
		}
		return r.endLine()
	case *agent.ToolCallStart:
		return r.line(fmt.Sprintf("%s %s%s", s.Muted.Render(ArrowIcon), s.ToolName.Render(e.Name), s.Muted.Render(formatArgs(e.Arguments, r.opts.MaxResult))))
	case *agent.ToolResult:
		preview := Truncate(oneLine(agent.FormatResult(e.Result)), r.opts.MaxResult)
		head := fmt.Sprintf("%s %s", e.Name, s.Muted.Render(fmt.Sprintf("(%dms)", e.DurationMs)))
		if e.IsError {
			return r.line(s.FormatResult(false, head) + " " + s.Error.Render(preview))
		}
		if preview != "" {
			head += " " + s.Muted.Render(preview)
		}
		return r.line(s.FormatResult(true, head))
	case *agent.TodoStart:
		r.todos[e.ListID] = make(map[string]string)
		return r.line(s.TodoTitle.Render(e.Title))
	case *agent.TodoItemAdd:
		if items := r.todos[e.ListID]; items != nil {
			items[e.Item.ID] = e.Item.Content
		}
		return r.line("  " + todoMark(s, e.Item.Status) + " " + e.Item.Content)
	case *agent.TodoItemUpdate:
		content := r.todos[e.ListID][e.ItemID]
		if content == "" {
			content = "#" + e.ItemID
		}
		line := "  " + todoMark(s, e.Status) + " " + content
		if e.Result != "" {
			line += " " + s.Muted.Render("("+e.Result+")")
		}
		return r.line(line)
	case *agent.Error:
		return r.line(s.Error.Render("error: " + e.Message))
	case *agent.Complete:
		return r.line(s.Footer.Render(completeSummary(e)))
	}
	return nil
}

func (r *Renderer) write(text string) error {
	if text == "" {
		return nil
	}
	_, err := io.WriteString(r.w, text)
	r.lineStart = strings.HasSuffix(text, "\n")
	return err
}

// endLine terminates a partially written line.
func (r *Renderer) endLine() error {
	if r.lineStart {
		return nil
	}
	return r.write("\n")
}

// line writes text on its own line.
func (r *Renderer) line(text string) error {
	if err := r.endLine(); err != nil {
		return err
	}
	return r.write(text + "\n")
}

func todoMark(s *Styles, status agent.TodoStatus) string {
	switch status {
	case agent.TodoCompleted:
		return s.Success.Render("[" + SuccessIcon + "]")
	case agent.TodoFailed:
		return s.Error.Render("[" + FailIcon + "]")
	case agent.TodoInProgress:
		return s.Warning.Render("[" + ActiveIcon + "]")
	}
	return s.Muted.Render("[" + PendingIcon + "]")
}

func formatArgs(args map[string]any, limit int) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return " " + Truncate(string(data), limit)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func completeSummary(e *agent.Complete) string {
	d := time.Duration(e.TotalDurationMs) * time.Millisecond
	noun := "iterations"
	if e.TotalIterations == 1 {
		noun = "iteration"
	}
	out := fmt.Sprintf("done: %d %s in %s", e.TotalIterations, noun, d.Round(10*time.Millisecond))
	if e.Usage != nil {
		out += fmt.Sprintf(", %d in / %d out tokens", e.Usage.InputTokens, e.Usage.OutputTokens)
	}
	return out
}
