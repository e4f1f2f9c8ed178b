package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// Registry serves in-process tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// NewBuiltinRegistry registers the named built-in tools confined to root.
// An empty enabled list registers all of them.
func NewBuiltinRegistry(root string, enabled []string, limits OutputLimits) (*Registry, error) {
	if len(enabled) == 0 {
		enabled = AllToolNames()
	}
	ws := Workspace{Root: root}
	r := NewRegistry()
	for _, name := range enabled {
		switch name {
		case ReadFileToolName:
			r.Register(NewReadFileTool(ws, limits))
		case GlobToolName:
			r.Register(NewGlobTool(ws, limits))
		case GrepToolName:
			r.Register(NewGrepTool(ws, limits))
		default:
			return nil, fmt.Errorf("unknown built-in tool: %s", name)
		}
	}
	return r, nil
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Spec().Name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ListTools returns the specs of all registered tools sorted by name.
func (r *Registry) ListTools(ctx context.Context) ([]llm.ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]llm.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	slices.SortFunc(specs, func(a, b llm.ToolSpec) int { return strings.Compare(a.Name, b.Name) })
	return specs, nil
}

// CallTool executes the named tool.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.Execute(ctx, args)
}
