package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// MultiToolProvider combines several providers. When two providers list the
// same name, the first one owns it.
type MultiToolProvider struct {
	providers []ToolProvider

	mu     sync.RWMutex
	owners map[string]ToolProvider
}

func NewMultiToolProvider(providers ...ToolProvider) *MultiToolProvider {
	var ps []ToolProvider
	for _, p := range providers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &MultiToolProvider{providers: ps, owners: map[string]ToolProvider{}}
}

func (m *MultiToolProvider) ListTools(ctx context.Context) ([]llm.ToolSpec, error) {
	owners := make(map[string]ToolProvider)
	var out []llm.ToolSpec
	for _, p := range m.providers {
		specs, err := p.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			if _, taken := owners[spec.Name]; taken {
				continue
			}
			owners[spec.Name] = p
			out = append(out, spec)
		}
	}
	m.mu.Lock()
	m.owners = owners
	m.mu.Unlock()
	return out, nil
}

func (m *MultiToolProvider) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	m.mu.RLock()
	p, ok := m.owners[name]
	m.mu.RUnlock()
	if !ok {
		if _, err := m.ListTools(ctx); err != nil {
			return nil, err
		}
		m.mu.RLock()
		p, ok = m.owners[name]
		m.mu.RUnlock()
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return p.CallTool(ctx, name, args)
}
