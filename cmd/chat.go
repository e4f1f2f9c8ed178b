package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/n0tssss/MCPLink-sub000/internal/agent"
	"github.com/n0tssss/MCPLink-sub000/internal/llm"
	"github.com/n0tssss/MCPLink-sub000/internal/signal"
	"github.com/n0tssss/MCPLink-sub000/internal/ui"
)

var (
	chatProvider      string
	chatStrategy      string
	chatMCP           string
	chatTools         string
	chatHistory       string
	chatSystem        string
	chatMaxIterations int
	chatJSON          bool
	chatNoMarkdown    bool
	chatIterations    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Send one message and run the agent loop until it answers",
	Long: `Send a message to the model and let it call tools until it produces
a final answer. The message is read from stdin when no arguments are given.

Examples:
  mcplink chat "summarise README.md"
  echo "find TODOs in the repo" | mcplink chat
  mcplink chat --tools grep,glob "where is main defined?"
  mcplink chat --history turns.yaml "and the second one?"
  mcplink chat --json "hello" | jq .type`,
	RunE: runChat,
}

func init() {
	AddProviderFlag(chatCmd, &chatProvider)
	AddStrategyFlag(chatCmd, &chatStrategy)
	AddMCPFlag(chatCmd, &chatMCP)
	chatCmd.Flags().StringVar(&chatTools, "tools", "", "Allow only these tools, comma-separated (default all)")
	chatCmd.Flags().StringVar(&chatHistory, "history", "", "YAML or JSON file with prior turns ([{role, content}])")
	chatCmd.Flags().StringVarP(&chatSystem, "system-message", "m", "", "System prompt (overrides config)")
	chatCmd.Flags().IntVar(&chatMaxIterations, "max-iterations", 0, "Iteration limit (overrides config)")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "Write events as JSON lines")
	chatCmd.Flags().BoolVar(&chatNoMarkdown, "no-markdown", false, "Print answer text as streamed, without markdown rendering")
	chatCmd.Flags().BoolVar(&chatIterations, "iterations", false, "Print a divider at each iteration")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	message, err := readMessage(args, os.Stdin)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyProviderOverrides(cfg, chatProvider); err != nil {
		return err
	}
	if chatSystem != "" {
		cfg.Agent.SystemPrompt = chatSystem
	}

	req := agent.ChatRequest{
		Message:       message,
		AllowedTools:  splitList(chatTools),
		MaxIterations: chatMaxIterations,
	}
	if req.Strategy, err = agent.ParseStrategy(chatStrategy); err != nil {
		return err
	}
	if chatHistory != "" {
		if req.History, err = loadHistory(chatHistory); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), nil)
	defer stop()

	toolSet, err := buildTools(ctx, cfg, splitList(chatMCP))
	if err != nil {
		return err
	}
	defer toolSet.Close()

	controller, err := newController(cfg, toolSet.provider)
	if err != nil {
		return err
	}

	stream := controller.Chat(ctx, req)
	defer stream.Close()

	var render func(agent.Event) error
	if chatJSON {
		render = jsonLines(os.Stdout)
	} else {
		tty := term.IsTerminal(int(os.Stdout.Fd()))
		opts := ui.RenderOptions{
			Markdown:   tty && !chatNoMarkdown,
			Iterations: chatIterations,
		}
		if tty {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				opts.Width = w
			}
		}
		r := ui.NewRenderer(os.Stdout, ui.NewStyles(os.Stdout, themeFromConfig(cfg)), opts)
		render = r.Render
	}

	failed := false
	for ev := range stream.All() {
		if _, ok := ev.(*agent.Error); ok {
			failed = true
		}
		if err := render(ev); err != nil {
			return err
		}
	}
	if failed {
		return errReported
	}
	return nil
}

// readMessage joins args, or reads stdin when there are none and it is piped.
func readMessage(args []string, stdin *os.File) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if term.IsTerminal(int(stdin.Fd())) {
		return "", fmt.Errorf("no message: pass it as arguments or on stdin")
	}
	data, err := io.ReadAll(bufio.NewReader(stdin))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return "", fmt.Errorf("no message: stdin was empty")
	}
	return msg, nil
}

// loadHistory reads prior turns. JSON input parses as YAML.
func loadHistory(path string) ([]agent.Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var turns []agent.Turn
	if err := yaml.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	for i, t := range turns {
		switch t.Role {
		case llm.RoleUser, llm.RoleAssistant, llm.RoleSystem:
		default:
			return nil, fmt.Errorf("history turn %d: unsupported role %q", i, t.Role)
		}
	}
	return turns, nil
}

func jsonLines(w io.Writer) func(agent.Event) error {
	return func(ev agent.Event) error {
		data, err := agent.MarshalEvent(ev)
		if err != nil {
			return err
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	}
}
