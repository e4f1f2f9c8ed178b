package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// ClientVersion is reported to servers during initialization.
var ClientVersion = "dev"

// Client wraps an MCP server connection.
type Client struct {
	name    string
	config  ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession
	tools   []llm.ToolSpec
	mu      sync.RWMutex
	running bool

	// transport overrides the configured transport when set.
	transport mcp.Transport
}

// NewClient creates a new MCP client for the given server configuration.
func NewClient(name string, config ServerConfig) *Client {
	return &Client{
		name:   name,
		config: config,
	}
}

// Name returns the server name.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) createTransport(ctx context.Context) mcp.Transport {
	if c.transport != nil {
		return c.transport
	}
	if c.config.TransportType() == "http" {
		return c.createHTTPTransport()
	}
	return c.createStdioTransport(ctx)
}

// createStdioTransport builds the subprocess transport. cmd.Env stays nil
// without custom variables so the child inherits the parent environment.
func (c *Client) createStdioTransport(ctx context.Context) mcp.Transport {
	cmd := exec.CommandContext(ctx, c.config.Command, c.config.Args...)
	if len(c.config.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.config.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, os.ExpandEnv(v)))
		}
	}
	return &mcp.CommandTransport{Command: cmd}
}

func (c *Client) createHTTPTransport() mcp.Transport {
	httpClient := http.DefaultClient
	if len(c.config.Headers) > 0 {
		headers := make(map[string]string, len(c.config.Headers))
		for k, v := range c.config.Headers {
			headers[k] = os.ExpandEnv(v)
		}
		httpClient = &http.Client{Transport: &headerTransport{base: http.DefaultTransport, headers: headers}}
	}
	return &mcp.StreamableClientTransport{
		Endpoint:   c.config.URL,
		HTTPClient: httpClient,
	}
}

// headerTransport adds static headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// Start connects to the MCP server and fetches its tool list.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	c.client = mcp.NewClient(&mcp.Implementation{
		Name:    "mcplink",
		Version: ClientVersion,
	}, nil)

	session, err := c.client.Connect(ctx, c.createTransport(ctx), nil)
	if err != nil {
		return fmt.Errorf("connect to MCP server %s: %w", c.name, err)
	}
	c.session = session

	if err := c.refreshTools(ctx); err != nil {
		c.session.Close()
		c.session = nil
		return fmt.Errorf("list tools from %s: %w", c.name, err)
	}

	c.running = true
	return nil
}

// Stop closes the MCP server connection.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	var err error
	if c.session != nil {
		err = c.session.Close()
		c.session = nil
	}
	c.running = false
	c.tools = nil
	return err
}

// IsRunning returns whether the client is connected.
func (c *Client) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Tools returns the tools advertised by this server, unprefixed.
func (c *Client) Tools() []llm.ToolSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// refreshTools fetches the tool list from the server, following pagination.
func (c *Client) refreshTools(ctx context.Context) error {
	var tools []llm.ToolSpec
	for t, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return err
		}
		tools = append(tools, llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Schema:      schemaMap(t.InputSchema),
		})
	}
	c.tools = tools
	return nil
}

// schemaMap normalises an input schema to a plain map.
func schemaMap(schema any) map[string]any {
	switch s := schema.(type) {
	case nil:
		return map[string]any{"type": "object", "properties": map[string]any{}}
	case map[string]any:
		return s
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// CallTool invokes a tool on the MCP server. Text content is returned as a
// string; a result with only structured content returns that value.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	c.mu.RLock()
	session := c.session
	running := c.running
	c.mu.RUnlock()

	if !running || session == nil {
		return nil, fmt.Errorf("MCP server %s is not running", c.name)
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}

	text := formatContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "unknown error"
		}
		return nil, fmt.Errorf("tool %s returned error: %s", name, text)
	}
	if text == "" && result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return text, nil
}

// formatContent converts MCP content to a string.
func formatContent(content []mcp.Content) string {
	var sb strings.Builder
	for _, c := range content {
		switch v := c.(type) {
		case *mcp.TextContent:
			sb.WriteString(v.Text)
		case *mcp.ImageContent:
			fmt.Fprintf(&sb, "[image %s, %d bytes]", v.MIMEType, len(v.Data))
		default:
			if data, err := json.Marshal(c); err == nil {
				sb.Write(data)
			}
		}
	}
	return sb.String()
}
