package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/n0tssss/MCPLink-sub000/internal/agent"
	"github.com/n0tssss/MCPLink-sub000/internal/config"
	"github.com/n0tssss/MCPLink-sub000/internal/credentials"
	"github.com/n0tssss/MCPLink-sub000/internal/llm"
	"github.com/n0tssss/MCPLink-sub000/internal/mcp"
	"github.com/n0tssss/MCPLink-sub000/internal/tools"
	"github.com/n0tssss/MCPLink-sub000/internal/ui"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func applyProviderOverrides(cfg *config.Config, providerFlag string) error {
	if providerFlag == "" {
		return nil
	}
	overrideProvider, overrideModel, err := llm.ParseProviderModel(providerFlag)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(overrideProvider, overrideModel)
	return nil
}

func themeFromConfig(cfg *config.Config) *ui.Theme {
	return ui.ThemeFromConfig(ui.ThemeConfig{
		Preset:  cfg.Theme.Preset,
		Primary: cfg.Theme.Primary,
		Muted:   cfg.Theme.Muted,
		Error:   cfg.Theme.Error,
		Success: cfg.Theme.Success,
	})
}

// toolSet is the combined tool provider for one command run.
type toolSet struct {
	provider agent.ToolProvider
	manager  *mcp.Manager    // nil without MCP servers
	builtin  *tools.Registry // nil when built-in tools are off
}

func (t *toolSet) Close() {
	if t.manager != nil {
		t.manager.StopAll()
	}
}

// builtinToolNames decides which in-process tools to register. Explicit
// names win; "none" turns them off; otherwise they fill in only when no
// MCP server is configured.
func builtinToolNames(configured []string, haveMCP bool) ([]string, bool) {
	if slices.Contains(configured, "none") {
		return nil, false
	}
	if len(configured) > 0 {
		return configured, true
	}
	if haveMCP {
		return nil, false
	}
	return tools.AllToolNames(), true
}

// buildTools starts the configured MCP servers and the built-in tools.
// only restricts MCP servers by name when non-empty.
func buildTools(ctx context.Context, cfg *config.Config, only []string) (*toolSet, error) {
	path, err := cfg.MCPConfigPath()
	if err != nil {
		return nil, err
	}
	mcpCfg, err := mcp.LoadConfigFromPath(path)
	if err != nil {
		return nil, err
	}
	if len(only) == 0 {
		only = cfg.MCP.Servers
	}
	if mcpCfg, err = mcpCfg.Only(only); err != nil {
		return nil, err
	}

	set := &toolSet{}
	var providers []agent.ToolProvider
	if len(mcpCfg.Servers) > 0 {
		set.manager = mcp.NewManager(mcpCfg)
		set.manager.Start(ctx)
		providers = append(providers, set.manager)
	}

	if names, ok := builtinToolNames(cfg.Tools.Builtin, len(mcpCfg.Servers) > 0); ok {
		reg, err := tools.NewBuiltinRegistry(cfg.Tools.Root, names, tools.DefaultOutputLimits())
		if err != nil {
			set.Close()
			return nil, err
		}
		set.builtin = reg
		providers = append(providers, reg)
	}

	slog.Debug("tools ready", "mcp_config", path, "mcp_servers", len(mcpCfg.Servers), "builtin", set.builtin != nil)
	set.provider = agent.NewMultiToolProvider(providers...)
	return set, nil
}

func newSelector(cfg *config.Config) (*agent.StrategySelector, error) {
	override, err := agent.ParseStrategy(cfg.Agent.Strategy)
	if err != nil {
		return nil, err
	}
	rules := make([]agent.Rule, 0, len(cfg.Agent.Rules))
	for _, r := range cfg.Agent.Rules {
		s, err := agent.ParseStrategy(r.Strategy)
		if err != nil {
			return nil, err
		}
		rules = append(rules, agent.Rule{Pattern: r.Pattern, Strategy: s})
	}
	return agent.NewStrategySelector(override, rules)
}

// newController wires the configured provider and tools into a controller.
func newController(cfg *config.Config, toolProvider agent.ToolProvider) (*agent.Controller, error) {
	keys, err := credentials.Load()
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(cfg, keys)
	if err != nil {
		return nil, err
	}
	selector, err := newSelector(cfg)
	if err != nil {
		return nil, err
	}
	return agent.NewController(agent.Options{
		Provider:        provider,
		Tools:           toolProvider,
		Model:           cfg.ActiveModel(),
		Selector:        selector,
		SystemPrompt:    cfg.Agent.SystemPrompt,
		MaxIterations:   cfg.Agent.MaxIterations,
		MaxOutputTokens: cfg.Agent.MaxOutputTokens,
		Temperature:     float32(cfg.Agent.Temperature),
	}), nil
}
