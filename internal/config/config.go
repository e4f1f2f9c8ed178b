package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider type names accepted in the provider field.
const (
	ProviderAnthropic    = "anthropic"
	ProviderOpenAI       = "openai"
	ProviderGemini       = "gemini"
	ProviderOllama       = "ollama"
	ProviderLMStudio     = "lmstudio"
	ProviderOpenAICompat = "openai_compat"
)

type Config struct {
	Provider     string         `mapstructure:"provider" yaml:"provider"`
	Agent        AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Retry        RetryConfig    `mapstructure:"retry" yaml:"retry"`
	MCP          MCPConfig      `mapstructure:"mcp" yaml:"mcp"`
	Tools        ToolsConfig    `mapstructure:"tools" yaml:"tools"`
	Theme        ThemeConfig    `mapstructure:"theme" yaml:"theme"`
	Anthropic    ProviderConfig `mapstructure:"anthropic" yaml:"anthropic"`
	OpenAI       ProviderConfig `mapstructure:"openai" yaml:"openai"`
	Gemini       ProviderConfig `mapstructure:"gemini" yaml:"gemini"`
	Ollama       ProviderConfig `mapstructure:"ollama" yaml:"ollama"`
	LMStudio     ProviderConfig `mapstructure:"lmstudio" yaml:"lmstudio"`
	OpenAICompat ProviderConfig `mapstructure:"openai_compat" yaml:"openai_compat"`

	// File is the config file that was read, empty when defaults only.
	File string `mapstructure:"-" yaml:"-"`
}

// ProviderConfig configures a single model backend.
// APIKey may reference environment variables ($VAR or ${VAR}).
type ProviderConfig struct {
	Model   string            `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL string            `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey  string            `mapstructure:"api_key" yaml:"-"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
}

// AgentConfig configures the iteration loop.
type AgentConfig struct {
	MaxIterations   int            `mapstructure:"max_iterations" yaml:"max_iterations"`
	Strategy        string         `mapstructure:"strategy" yaml:"strategy"` // "", "native" or "prompt"
	SystemPrompt    string         `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
	MaxOutputTokens int            `mapstructure:"max_output_tokens" yaml:"max_output_tokens,omitempty"`
	Temperature     float64        `mapstructure:"temperature" yaml:"temperature,omitempty"`
	Rules           []StrategyRule `mapstructure:"rules" yaml:"rules"`
}

// StrategyRule maps a model glob pattern to an execution strategy.
type StrategyRule struct {
	Pattern  string `mapstructure:"pattern" yaml:"pattern"`
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
}

// RetryConfig configures provider retries on transient failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff" yaml:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

// MCPConfig locates the MCP server definitions.
type MCPConfig struct {
	Config  string   `mapstructure:"config" yaml:"config,omitempty"`   // path to mcp.json
	Servers []string `mapstructure:"servers" yaml:"servers,omitempty"` // enabled subset, empty = all
}

// ToolsConfig selects the in-process tools. Builtin empty means all of them
// when no MCP servers are configured; "none" disables them.
type ToolsConfig struct {
	Builtin []string `mapstructure:"builtin" yaml:"builtin,omitempty"`
	Root    string   `mapstructure:"root" yaml:"root,omitempty"` // confine file tools, default cwd
}

// ThemeConfig allows customization of UI colors
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB)
type ThemeConfig struct {
	Preset  string `mapstructure:"preset" yaml:"preset,omitempty"` // gruvbox, dracula, nord, solarized, monokai, classic
	Primary string `mapstructure:"primary" yaml:"primary,omitempty"`
	Muted   string `mapstructure:"muted" yaml:"muted,omitempty"`
	Error   string `mapstructure:"error" yaml:"error,omitempty"`
	Success string `mapstructure:"success" yaml:"success,omitempty"`
}

// DefaultRules routes hosted models with native tool calling to the native strategy.
func DefaultRules() []StrategyRule {
	return []StrategyRule{
		{Pattern: "claude-*", Strategy: "native"},
		{Pattern: "gpt-*", Strategy: "native"},
		{Pattern: "o[1-9]*", Strategy: "native"},
		{Pattern: "gemini-*", Strategy: "native"},
	}
}

// GetConfigDir returns the directory holding config.yaml and mcp.json.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "mcplink"), nil
}

// Load reads config.yaml from the config directory (or the current
// directory). A missing file is not an error.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads the given config file, or searches the default locations
// when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		configPath, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configPath)
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("MCPLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOllama)

	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.strategy", "")
	rules := make([]map[string]any, 0, len(DefaultRules()))
	for _, r := range DefaultRules() {
		rules = append(rules, map[string]any{"pattern": r.Pattern, "strategy": r.Strategy})
	}
	v.SetDefault("agent.rules", rules)

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_backoff", "1s")
	v.SetDefault("retry.max_backoff", "30s")

	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("openai.model", "gpt-4.1")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("ollama.base_url", "http://localhost:11434/v1")
	v.SetDefault("ollama.model", "qwen2.5:7b")
	v.SetDefault("lmstudio.base_url", "http://localhost:1234/v1")
	// openai_compat has no base_url default - it's required
}

func (c *Config) resolve() {
	for _, p := range []*ProviderConfig{&c.Anthropic, &c.OpenAI, &c.Gemini, &c.Ollama, &c.LMStudio, &c.OpenAICompat} {
		p.APIKey = expandEnv(p.APIKey)
		p.BaseURL = expandEnv(p.BaseURL)
	}
	c.MCP.Config = expandPath(c.MCP.Config)
	c.Tools.Root = expandPath(c.Tools.Root)
}

// Validate checks values the loop depends on.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be > 0, got %d", c.Agent.MaxIterations)
	}
	switch c.Agent.Strategy {
	case "", "native", "prompt":
	default:
		return fmt.Errorf("agent.strategy must be native or prompt, got %q", c.Agent.Strategy)
	}
	for i, r := range c.Agent.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("agent.rules[%d]: empty pattern", i)
		}
		if r.Strategy != "native" && r.Strategy != "prompt" {
			return fmt.Errorf("agent.rules[%d]: strategy must be native or prompt, got %q", i, r.Strategy)
		}
	}
	return nil
}

// ProviderConfigFor returns the section for a provider type.
func (c *Config) ProviderConfigFor(provider string) (*ProviderConfig, bool) {
	switch provider {
	case ProviderAnthropic:
		return &c.Anthropic, true
	case ProviderOpenAI:
		return &c.OpenAI, true
	case ProviderGemini:
		return &c.Gemini, true
	case ProviderOllama:
		return &c.Ollama, true
	case ProviderLMStudio:
		return &c.LMStudio, true
	case ProviderOpenAICompat:
		return &c.OpenAICompat, true
	}
	return nil, false
}

// ActiveModel returns the model configured for the active provider.
func (c *Config) ActiveModel() string {
	if p, ok := c.ProviderConfigFor(c.Provider); ok {
		return p.Model
	}
	return ""
}

// ApplyOverrides applies provider and model overrides to the config.
// If provider is non-empty, it overrides the global provider.
// If model is non-empty, it overrides the model for the active provider.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Provider = provider
	}
	if model != "" {
		if p, ok := c.ProviderConfigFor(c.Provider); ok {
			p.Model = model
		}
	}
}

// MCPConfigPath returns the mcp.json location: explicit, else next to the config file.
func (c *Config) MCPConfigPath() (string, error) {
	if c.MCP.Config != "" {
		return c.MCP.Config, nil
	}
	if c.File != "" {
		return filepath.Join(filepath.Dir(c.File), "mcp.json"), nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mcp.json"), nil
}

// expandEnv expands $VAR and ${VAR} references.
func expandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.ExpandEnv(s)
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return expandEnv(p)
}
