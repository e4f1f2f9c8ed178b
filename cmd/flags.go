package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/n0tssss/MCPLink-sub000/internal/config"
	"github.com/n0tssss/MCPLink-sub000/internal/llm"
	"github.com/n0tssss/MCPLink-sub000/internal/mcp"
)

// AddProviderFlag adds the --provider/-p flag with completion
func AddProviderFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVarP(dest, "provider", "p", "", "Override provider, optionally with model (e.g., ollama:qwen2.5:7b)")
	if err := cmd.RegisterFlagCompletionFunc("provider", ProviderFlagCompletion); err != nil {
		panic("failed to register provider completion: " + err.Error())
	}
}

// AddStrategyFlag adds the --strategy flag with completion
func AddStrategyFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVar(dest, "strategy", "", "Force the tool calling strategy: native or prompt")
	if err := cmd.RegisterFlagCompletionFunc("strategy", cobra.FixedCompletions([]string{"native", "prompt"}, cobra.ShellCompDirectiveNoFileComp)); err != nil {
		panic("failed to register strategy completion: " + err.Error())
	}
}

// AddMCPFlag adds the --mcp flag with completion
func AddMCPFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVar(dest, "mcp", "", "Enable only these MCP server(s), comma-separated")
	if err := cmd.RegisterFlagCompletionFunc("mcp", MCPFlagCompletion); err != nil {
		panic("failed to register mcp completion: " + err.Error())
	}
}

// ProviderFlagCompletion completes provider names, leaving room for ":model".
func ProviderFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var completions []string
	for _, name := range llm.GetBuiltInProviderNames() {
		if strings.HasPrefix(name, toComplete) {
			completions = append(completions, name)
		}
	}
	// If completing provider name (no colon), don't add space so user can type ":"
	if !strings.Contains(toComplete, ":") {
		return completions, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// MCPFlagCompletion completes comma-separated server names from mcp.json.
func MCPFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	path, err := cfg.MCPConfigPath()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	mcpCfg, err := mcp.LoadConfigFromPath(path)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var entered []string
	prefix := toComplete
	if idx := strings.LastIndex(toComplete, ","); idx >= 0 {
		entered = strings.Split(toComplete[:idx], ",")
		prefix = toComplete[idx+1:]
	}
	seen := make(map[string]bool, len(entered))
	for _, s := range entered {
		seen[s] = true
	}

	var completions []string
	for _, name := range mcpCfg.ServerNames() {
		if seen[name] || !strings.HasPrefix(name, prefix) {
			continue
		}
		if len(entered) > 0 {
			completions = append(completions, strings.Join(entered, ",")+","+name)
		} else {
			completions = append(completions, name)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

// splitList parses a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
