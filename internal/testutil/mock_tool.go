package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// MockTool is a configurable tool for testing.
type MockTool struct {
	SpecData  llm.ToolSpec
	ExecuteFn func(ctx context.Context, args map[string]any) (any, error)
}

// MockToolInvocation records a single tool invocation.
type MockToolInvocation struct {
	Name   string
	Args   map[string]any
	Result any
	Error  error
}

// NewMockTool creates a mock tool with the given name that returns a fixed result.
func NewMockTool(name string, result any) *MockTool {
	return &MockTool{
		SpecData: llm.ToolSpec{
			Name:        name,
			Description: "Mock tool: " + name,
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		ExecuteFn: func(ctx context.Context, args map[string]any) (any, error) {
			return result, nil
		},
	}
}

// NewMockToolWithSchema creates a mock tool with a custom schema.
func NewMockToolWithSchema(name, description string, schema map[string]any, executeFn func(ctx context.Context, args map[string]any) (any, error)) *MockTool {
	return &MockTool{
		SpecData: llm.ToolSpec{
			Name:        name,
			Description: description,
			Schema:      schema,
		},
		ExecuteFn: executeFn,
	}
}

// ToolSet is an in-memory tool provider that records every call.
type ToolSet struct {
	mu          sync.Mutex
	tools       []*MockTool
	ListErr     error
	Invocations []MockToolInvocation
}

func NewToolSet(tools ...*MockTool) *ToolSet {
	return &ToolSet{tools: tools}
}

func (s *ToolSet) ListTools(ctx context.Context) ([]llm.ToolSpec, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	specs := make([]llm.ToolSpec, 0, len(s.tools))
	for _, t := range s.tools {
		specs = append(specs, t.SpecData)
	}
	return specs, nil
}

func (s *ToolSet) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	for _, t := range s.tools {
		if t.SpecData.Name != name {
			continue
		}
		var (
			result any
			err    error
		)
		if t.ExecuteFn != nil {
			result, err = t.ExecuteFn(ctx, args)
		}
		s.mu.Lock()
		s.Invocations = append(s.Invocations, MockToolInvocation{Name: name, Args: args, Result: result, Error: err})
		s.mu.Unlock()
		return result, err
	}
	return nil, fmt.Errorf("no mock tool %q", name)
}

// Calls returns a copy of the recorded invocations.
func (s *ToolSet) Calls() []MockToolInvocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MockToolInvocation(nil), s.Invocations...)
}
