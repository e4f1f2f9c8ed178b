package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/n0tssss/MCPLink-sub000/internal/agent"
	"github.com/n0tssss/MCPLink-sub000/internal/llm"
	"github.com/n0tssss/MCPLink-sub000/internal/mcp"
	"github.com/n0tssss/MCPLink-sub000/internal/signal"
	"github.com/n0tssss/MCPLink-sub000/internal/ui"
)

var toolsMCP string

var toolsCmd = &cobra.Command{
	Use:   "tools [query]",
	Short: "List the tools the agent can call",
	Long: `Start the configured MCP servers and built-in tools and list what they
offer. An optional query fuzzy-filters tool names.

Examples:
  mcplink tools
  mcplink tools grep
  mcplink tools --mcp filesystem`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTools,
}

func init() {
	AddMCPFlag(toolsCmd, &toolsMCP)
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), nil)
	defer stop()

	set, err := buildTools(ctx, cfg, splitList(toolsMCP))
	if err != nil {
		return err
	}
	defer set.Close()

	specs, err := set.provider.ListTools(ctx)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		specs = filterTools(specs, args[0])
	}

	styles := ui.NewStyles(os.Stdout, themeFromConfig(cfg))
	if set.manager != nil {
		printServerStates(os.Stdout, styles, set.manager.States())
	}
	printTools(os.Stdout, styles, specs)
	return nil
}

// filterTools keeps the tools whose names fuzzy-match query, best first.
func filterTools(specs []llm.ToolSpec, query string) []llm.ToolSpec {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	matches := fuzzy.Find(query, names)
	out := make([]llm.ToolSpec, 0, len(matches))
	for _, m := range matches {
		out = append(out, specs[m.Index])
	}
	return out
}

func printServerStates(w io.Writer, styles *ui.Styles, states []mcp.ServerState) {
	fmt.Fprintln(w, styles.Title.Render("MCP servers"))
	for _, st := range states {
		line := fmt.Sprintf("%s %s", st.Name, styles.Muted.Render(string(st.Status)))
		if st.Error != nil {
			line += " " + styles.Error.Render(st.Error.Error())
		}
		fmt.Fprintln(w, "  "+styles.FormatResult(st.Status == mcp.StatusReady, line))
	}
	fmt.Fprintln(w)
}

func printTools(w io.Writer, styles *ui.Styles, specs []llm.ToolSpec) {
	if len(specs) == 0 {
		fmt.Fprintln(w, "No tools available.")
		return
	}
	fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("Tools (%d)", len(specs))))
	for _, spec := range specs {
		fmt.Fprintf(w, "  %s\n", styles.ToolName.Render(spec.Name))
		if spec.Description != "" {
			fmt.Fprintf(w, "    %s\n", ui.Truncate(strings.Join(strings.Fields(spec.Description), " "), 100))
		}
		if params := describeParams(spec); params != "" {
			fmt.Fprintf(w, "    %s\n", styles.Muted.Render(params))
		}
	}
}

// describeParams renders "name: type" pairs, required ones first.
func describeParams(spec llm.ToolSpec) string {
	schema, err := agent.NewToolSchema(spec.Schema)
	if err != nil {
		return ""
	}
	var parts []string
	for _, name := range schema.Required() {
		parts = append(parts, paramLabel(schema, name))
	}
	for _, name := range schema.Optional() {
		parts = append(parts, paramLabel(schema, name)+"?")
	}
	return strings.Join(parts, ", ")
}

func paramLabel(schema *agent.ToolSchema, name string) string {
	if t := schema.PropertyType(name); t != "" {
		return name + ": " + t
	}
	return name
}
