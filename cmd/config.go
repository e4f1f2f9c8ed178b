package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/n0tssss/MCPLink-sub000/internal/config"
	"github.com/n0tssss/MCPLink-sub000/internal/mcp"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show mcplink configuration",
	Long: `View the effective configuration after defaults, the config file and
MCPLINK_* environment overrides are merged. API keys are never printed.

Examples:
  mcplink config                      # show current config
  mcplink config path                 # print config file location
  mcplink config mcp                  # list configured MCP servers`,
	RunE: configShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration file path",
	RunE:  configPath,
}

var configMCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "List configured MCP servers",
	RunE:  configMCP,
}

func init() {
	configCmd.AddCommand(configPathCmd, configMCPCmd)
	rootCmd.AddCommand(configCmd)
}

func configShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return writeConfig(os.Stdout, cfg)
}

func writeConfig(w io.Writer, cfg *config.Config) error {
	if cfg.File == "" {
		fmt.Fprintf(w, "# No config file (using defaults)\n\n")
	} else {
		fmt.Fprintf(w, "# %s\n\n", cfg.File)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func configPath(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		fmt.Println(configFile)
		return nil
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return err
	}
	fmt.Println(filepath.Join(dir, "config.yaml"))
	return nil
}

func configMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := cfg.MCPConfigPath()
	if err != nil {
		return err
	}
	mcpCfg, err := mcp.LoadConfigFromPath(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	writeServers(os.Stdout, mcpCfg, path)
	return nil
}

func writeServers(w io.Writer, cfg *mcp.Config, path string) {
	if len(cfg.Servers) == 0 {
		fmt.Fprintln(w, "No MCP servers configured.")
		fmt.Fprintf(w, "\nAdd servers to: %s\n", path)
		return
	}
	fmt.Fprintf(w, "Configured MCP servers (%d):\n\n", len(cfg.Servers))
	for _, name := range cfg.ServerNames() {
		server := cfg.Servers[name]
		fmt.Fprintf(w, "  %s\n", name)
		if server.TransportType() == "http" {
			fmt.Fprintf(w, "    url: %s\n", server.URL)
			if len(server.Headers) > 0 {
				fmt.Fprintf(w, "    headers: %d\n", len(server.Headers))
			}
		} else {
			fmt.Fprintf(w, "    command: %s\n", joinCommand(server.Command, server.Args))
			if len(server.Env) > 0 {
				fmt.Fprintf(w, "    env: %d variables\n", len(server.Env))
			}
		}
	}
	fmt.Fprintf(w, "\nConfig file: %s\n", path)
}

func joinCommand(command string, args []string) string {
	return strings.TrimSpace(command + " " + strings.Join(args, " "))
}
