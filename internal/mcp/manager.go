package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// ServerStatus represents the current state of an MCP server.
type ServerStatus string

const (
	StatusStopped  ServerStatus = "stopped"
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusFailed   ServerStatus = "failed"
)

// toolSeparator joins server and tool names in the names the model sees.
const toolSeparator = "__"

// ServerState holds the state of a managed MCP server.
type ServerState struct {
	Name   string
	Status ServerStatus
	Error  error
	Client *Client
}

// Manager owns the configured MCP servers and exposes their tools under
// server-prefixed names. It satisfies agent.ToolProvider.
type Manager struct {
	config   *Config
	statuses map[string]*ServerState
	mu       sync.RWMutex

	newClient func(name string, cfg ServerConfig) *Client
}

// NewManager creates a manager for cfg. Nothing is started until Start.
func NewManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = &Config{Servers: make(map[string]ServerConfig)}
	}
	return &Manager{
		config:    cfg,
		statuses:  make(map[string]*ServerState),
		newClient: NewClient,
	}
}

// Config returns the current configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// Start connects every configured server concurrently and waits for all of
// them. A server that fails is logged and marked failed; its tools are simply
// absent, so Start itself never fails.
func (m *Manager) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range m.config.ServerNames() {
		client := m.newClient(name, m.config.Servers[name])
		m.mu.Lock()
		m.statuses[name] = &ServerState{Name: name, Status: StatusStarting, Client: client}
		m.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.start(ctx, name, client)
		}()
	}
	wg.Wait()
}

func (m *Manager) start(ctx context.Context, name string, client *Client) {
	err := client.Start(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.statuses[name]
	if err != nil {
		slog.Warn("MCP server failed to start", "server", name, "error", err)
		state.Status = StatusFailed
		state.Error = err
		return
	}
	slog.Debug("MCP server ready", "server", name, "tools", len(client.Tools()))
	state.Status = StatusReady
	state.Error = nil
}

// StopAll stops all running MCP servers.
func (m *Manager) StopAll() {
	m.mu.Lock()
	states := m.statuses
	m.statuses = make(map[string]*ServerState)
	m.mu.Unlock()

	for name, s := range states {
		if s.Client == nil {
			continue
		}
		if err := s.Client.Stop(); err != nil {
			slog.Debug("MCP server stop", "server", name, "error", err)
		}
	}
}

// ServerStatus returns the current status of a server.
func (m *Manager) ServerStatus(name string) (ServerStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.statuses[name]
	if !ok {
		return StatusStopped, nil
	}
	return state.Status, state.Error
}

// States returns a snapshot of every server, sorted by name.
func (m *Manager) States() []ServerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]ServerState, 0, len(m.statuses))
	for _, state := range m.statuses {
		states = append(states, ServerState{
			Name:   state.Name,
			Status: state.Status,
			Error:  state.Error,
		})
	}
	slices.SortFunc(states, func(a, b ServerState) int { return strings.Compare(a.Name, b.Name) })
	return states
}

// ListTools returns the tools of every ready server, named server__tool and
// sorted by that name.
func (m *Manager) ListTools(ctx context.Context) ([]llm.ToolSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []llm.ToolSpec
	for name, state := range m.statuses {
		if state.Status != StatusReady || state.Client == nil {
			continue
		}
		for _, tool := range state.Client.Tools() {
			desc := fmt.Sprintf("[%s] %s", name, tool.Description)
			all = append(all, llm.ToolSpec{
				Name:        name + toolSeparator + tool.Name,
				Description: strings.TrimSpace(desc),
				Schema:      tool.Schema,
			})
		}
	}
	slices.SortFunc(all, func(a, b llm.ToolSpec) int { return strings.Compare(a.Name, b.Name) })
	return all, nil
}

// CallTool routes a prefixed tool name to its server.
func (m *Manager) CallTool(ctx context.Context, fullName string, args map[string]any) (any, error) {
	serverName, toolName := parseToolName(fullName)
	if serverName == "" {
		return nil, fmt.Errorf("invalid MCP tool name: %s (expected servername__toolname)", fullName)
	}

	m.mu.RLock()
	state, ok := m.statuses[serverName]
	var client *Client
	if ok && state.Status == StatusReady {
		client = state.Client
	}
	m.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("MCP server %s is not running", serverName)
	}
	return client.CallTool(ctx, toolName, args)
}

// parseToolName splits a prefixed name at the first separator.
func parseToolName(fullName string) (serverName, toolName string) {
	server, tool, ok := strings.Cut(fullName, toolSeparator)
	if !ok || server == "" {
		return "", fullName
	}
	return server, tool
}
