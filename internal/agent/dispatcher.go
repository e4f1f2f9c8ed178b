package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// ErrUnknownTool is wrapped into results for calls naming no known tool.
var ErrUnknownTool = errors.New("unknown tool")

// ToolProvider lists and executes tools.
type ToolProvider interface {
	ListTools(ctx context.Context) ([]llm.ToolSpec, error)
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}

// ToolCallResult is the outcome of one dispatched call.
type ToolCallResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Result     any    `json:"result"`
	IsError    bool   `json:"is_error"`
	DurationMs int64  `json:"duration_ms"`
}

// Dispatcher executes tool calls against a ToolProvider. It never fails:
// every error becomes an IsError result. No timeout is applied beyond the
// context passed to Execute.
type Dispatcher struct {
	provider ToolProvider
	schemas  map[string]*ToolSchema
	names    []string
	now      func() time.Time
}

// NewDispatcher prepares a dispatcher for the given tool set. Tools whose
// schema cannot be resolved are dispatched without argument validation.
func NewDispatcher(provider ToolProvider, specs []llm.ToolSpec, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	d := &Dispatcher{
		provider: provider,
		schemas:  make(map[string]*ToolSchema, len(specs)),
		now:      now,
	}
	for _, spec := range specs {
		d.names = append(d.names, spec.Name)
		schema, err := NewToolSchema(spec.Schema)
		if err != nil {
			slog.Warn("tool schema not usable for validation", "tool", spec.Name, "error", err)
			d.schemas[spec.Name] = nil
			continue
		}
		d.schemas[spec.Name] = schema
	}
	sort.Strings(d.names)
	return d
}

// Execute runs one call and reports its result.
func (d *Dispatcher) Execute(ctx context.Context, req ToolCallRequest) (res ToolCallResult) {
	start := d.now()
	res = ToolCallResult{ID: req.ID, Name: req.Name}
	defer func() {
		if r := recover(); r != nil {
			res.Result = fmt.Sprintf("tool %s panicked: %v", req.Name, r)
			res.IsError = true
		}
		res.DurationMs = d.now().Sub(start).Milliseconds()
		slog.Debug("tool dispatched", "tool", req.Name, "id", req.ID,
			"duration_ms", res.DurationMs, "is_error", res.IsError)
	}()

	schema, known := d.schemas[req.Name]
	if !known {
		res.Result = d.unknownToolMessage(req.Name)
		res.IsError = true
		return res
	}
	if schema != nil {
		if err := schema.Validate(req.Arguments); err != nil {
			res.Result = fmt.Sprintf("invalid arguments for %s: %v", req.Name, err)
			res.IsError = true
			return res
		}
	}

	out, err := d.provider.CallTool(ctx, req.Name, req.Arguments)
	if err != nil {
		res.Result = err.Error()
		res.IsError = true
		return res
	}
	res.Result = out
	return res
}

func (d *Dispatcher) unknownToolMessage(name string) string {
	msg := fmt.Sprintf("%v: %s", ErrUnknownTool, name)
	if matches := fuzzy.Find(name, d.names); len(matches) > 0 {
		return msg + fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
	}
	if len(d.names) > 0 {
		return msg + ". Available tools: " + strings.Join(d.names, ", ")
	}
	return msg
}
