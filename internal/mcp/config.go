package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// Config represents the mcp.json configuration file.
type Config struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// ServerConfig represents a configured MCP server.
// Supports both stdio transport (Command/Args) and HTTP transport (URL).
type ServerConfig struct {
	// Type discriminator: "stdio" (default if command present) or "http"
	Type string `json:"type,omitempty"`

	// Stdio transport fields
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// HTTP transport fields
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	Env map[string]string `json:"env,omitempty"`
}

// TransportType returns the effective transport type for this server.
func (c *ServerConfig) TransportType() string {
	if c.Type == "http" || c.URL != "" {
		return "http"
	}
	return "stdio"
}

// Validate checks that the server configuration is valid.
func (c *ServerConfig) Validate() error {
	if c.URL != "" && c.Command != "" {
		return fmt.Errorf("cannot specify both url and command")
	}
	if c.TransportType() == "http" {
		if c.URL == "" {
			return fmt.Errorf("http transport requires url")
		}
		return nil
	}
	if c.Command == "" {
		return fmt.Errorf("stdio transport requires command")
	}
	return nil
}

// LoadConfigFromPath loads the MCP configuration from path. A missing file
// yields an empty configuration.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Servers: make(map[string]ServerConfig)}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Servers == nil {
		cfg.Servers = make(map[string]ServerConfig)
	}
	for name, sc := range cfg.Servers {
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("server %s: %w", name, err)
		}
	}
	return &cfg, nil
}

// ServerNames returns a sorted list of configured server names.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Only restricts the configuration to the named servers. Unknown names are
// reported; an empty list keeps everything.
func (c *Config) Only(names []string) (*Config, error) {
	if len(names) == 0 {
		return c, nil
	}
	out := &Config{Servers: make(map[string]ServerConfig, len(names))}
	for _, name := range names {
		sc, ok := c.Servers[name]
		if !ok {
			return nil, fmt.Errorf("unknown MCP server: %s", name)
		}
		out.Servers[name] = sc
	}
	return out, nil
}
