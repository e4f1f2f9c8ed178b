package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{
		Provider:  "anthropic",
		Anthropic: ProviderConfig{Model: "claude-sonnet-4-5"},
		OpenAI:    ProviderConfig{Model: "gpt-4.1"},
	}

	cfg.ApplyOverrides("openai", "gpt-4o")
	if cfg.Provider != "openai" {
		t.Fatalf("provider=%q, want %q", cfg.Provider, "openai")
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Fatalf("openai model=%q, want %q", cfg.OpenAI.Model, "gpt-4o")
	}
	if cfg.Anthropic.Model != "claude-sonnet-4-5" {
		t.Fatalf("anthropic model changed unexpectedly: %q", cfg.Anthropic.Model)
	}

	cfg.ApplyOverrides("", "o3")
	if cfg.Provider != "openai" {
		t.Fatalf("provider changed unexpectedly: %q", cfg.Provider)
	}
	if got := cfg.ActiveModel(); got != "o3" {
		t.Fatalf("ActiveModel()=%q, want %q", got, "o3")
	}
}

func TestLoadFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: ollama\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("max_iterations=%d, want 10", cfg.Agent.MaxIterations)
	}
	if cfg.Retry.BaseBackoff != time.Second {
		t.Errorf("base_backoff=%v, want 1s", cfg.Retry.BaseBackoff)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("ollama base_url=%q", cfg.Ollama.BaseURL)
	}
	if len(cfg.Agent.Rules) != len(DefaultRules()) {
		t.Errorf("rules=%d, want %d", len(cfg.Agent.Rules), len(DefaultRules()))
	}
	mcpPath, err := cfg.MCPConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(filepath.Dir(path), "mcp.json"); mcpPath != want {
		t.Errorf("MCPConfigPath()=%q, want %q", mcpPath, want)
	}
}

func TestLoadFileRulesAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_COMPAT_KEY", "secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
provider: openai_compat
openai_compat:
  base_url: http://example.test/v1
  api_key: $TEST_COMPAT_KEY
  model: llama3
agent:
  max_iterations: 4
  strategy: prompt
  rules:
    - pattern: "llama*"
      strategy: native
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.OpenAICompat.APIKey != "secret" {
		t.Errorf("api_key=%q, want expanded value", cfg.OpenAICompat.APIKey)
	}
	if cfg.Agent.MaxIterations != 4 || cfg.Agent.Strategy != "prompt" {
		t.Errorf("agent=%+v", cfg.Agent)
	}
	if len(cfg.Agent.Rules) != 1 || cfg.Agent.Rules[0].Pattern != "llama*" {
		t.Errorf("rules=%+v", cfg.Agent.Rules)
	}
}

func TestValidateRejectsBadStrategy(t *testing.T) {
	cfg := &Config{Agent: AgentConfig{MaxIterations: 1, Strategy: "magic"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	cfg = &Config{Agent: AgentConfig{MaxIterations: 0}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero max_iterations")
	}
}

func TestLoadFileToolsAndTheme(t *testing.T) {
	home, _ := os.UserHomeDir()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
tools:
  builtin: [read_file, glob]
  root: ~/work
theme:
  preset: nord
  error: "9"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.Tools.Builtin) != 2 || cfg.Tools.Builtin[1] != "glob" {
		t.Errorf("tools.builtin=%v", cfg.Tools.Builtin)
	}
	if home != "" && cfg.Tools.Root != filepath.Join(home, "work") {
		t.Errorf("tools.root=%q, want expanded home", cfg.Tools.Root)
	}
	if cfg.Theme.Preset != "nord" || cfg.Theme.Error != "9" {
		t.Errorf("theme=%+v", cfg.Theme)
	}
}
