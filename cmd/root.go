package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/n0tssss/MCPLink-sub000/internal/mcp"
)

// Version is set at build time.
var Version = "dev"

var (
	configFile string
	debugLog   bool
)

// errReported marks failures already shown to the user as events.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "mcplink",
	Short: "Run a tool-using agent loop against any model",
	Long: `mcplink connects a language model to MCP tool servers and runs the
think / call tool / observe loop until the model answers.

Models with native tool calling are driven through their API; other models
are taught a text protocol and their output is parsed as it streams.

Examples:
  mcplink chat "what changed in the repo today?"
  mcplink chat --provider ollama:qwen2.5:7b --strategy prompt "list the files"
  mcplink tools                          # list available tools
  mcplink config show                    # effective configuration`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/mcplink/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugLog, "debug", "d", false, "Log debug information to stderr")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if debugLog {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	mcp.ClientVersion = Version
	return nil
}
