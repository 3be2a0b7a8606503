package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/reasoncore/engine/config"
)

// MCPToolRepository connects to an external MCP server over stdio and
// exposes its tools through the Tool/ToolRepository contract. The
// connection is established lazily on the first DiscoverTools call.
type MCPToolRepository struct {
	name    string
	command string
	args    []string
	env     map[string]string

	mu        sync.Mutex
	client    *client.Client
	tools     map[string]*mcpTool
	connected bool
}

// NewMCPToolRepository creates an MCP repository that launches command as
// a stdio subprocess when tools are first discovered.
func NewMCPToolRepository(name, command string, args []string, env map[string]string) *MCPToolRepository {
	return &MCPToolRepository{
		name:    name,
		command: command,
		args:    args,
		env:     env,
		tools:   make(map[string]*mcpTool),
	}
}

// NewMCPToolRepositoryWithConfig builds an MCP repository from a
// config.ToolRepository entry, reading the subprocess command and args out
// of its Config map (since the stdio transport has no dedicated fields in
// the schema).
func NewMCPToolRepositoryWithConfig(repoConfig config.ToolRepository) (*MCPToolRepository, error) {
	command, _ := repoConfig.Config["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("mcp repository %q: config.command is required", repoConfig.Name)
	}

	var args []string
	if raw, ok := repoConfig.Config["args"].([]interface{}); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				args = append(args, s)
			}
		}
	}

	env := make(map[string]string)
	if raw, ok := repoConfig.Config["env"].(map[string]interface{}); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				env[k] = s
			}
		}
	}

	return NewMCPToolRepository(repoConfig.Name, command, args, env), nil
}

func (r *MCPToolRepository) GetName() string { return r.name }
func (r *MCPToolRepository) GetType() string { return "mcp" }

// DiscoverTools connects to the MCP server (if not already connected) and
// lists its available tools.
func (r *MCPToolRepository) DiscoverTools(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		return nil
	}

	mcpClient, err := client.NewStdioMCPClient(r.command, toEnvSlice(r.env), r.args...)
	if err != nil {
		return fmt.Errorf("failed to create MCP client for %s: %w", r.name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP client for %s: %w", r.name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "reasoncore-engine", Version: "0.1.0-alpha"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP server %s: %w", r.name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list tools from %s: %w", r.name, err)
	}

	tools := make(map[string]*mcpTool, len(listResp.Tools))
	for _, t := range listResp.Tools {
		tools[t.Name] = &mcpTool{
			repo:   r,
			name:   t.Name,
			desc:   t.Description,
			schema: convertMCPSchema(t.InputSchema),
		}
	}

	r.client = mcpClient
	r.tools = tools
	r.connected = true

	slog.Info("connected to MCP server", "name", r.name, "command", r.command, "tools", len(tools))
	return nil
}

func (r *MCPToolRepository) ListTools() []ToolInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, ToolInfo{Name: t.name, Description: t.desc, ServerURL: r.name})
	}
	return infos
}

func (r *MCPToolRepository) GetTool(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// Close terminates the MCP subprocess, if connected.
func (r *MCPToolRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	r.connected = false
	return err
}

// mcpTool adapts one MCP server tool to the Tool interface.
type mcpTool struct {
	repo   *MCPToolRepository
	name   string
	desc   string
	schema map[string]interface{}
}

func (t *mcpTool) GetInfo() ToolInfo {
	return ToolInfo{Name: t.name, Description: t.desc, ServerURL: t.repo.name}
}

func (t *mcpTool) GetName() string        { return t.name }
func (t *mcpTool) GetDescription() string { return t.desc }

func (t *mcpTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	t.repo.mu.Lock()
	mcpClient := t.repo.client
	t.repo.mu.Unlock()
	if mcpClient == nil {
		return ToolResult{Success: false, Error: "MCP client not connected", ToolName: t.name}, fmt.Errorf("mcp repository %s not connected", t.repo.name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error(), ToolName: t.name}, err
	}

	if resp.IsError {
		msg := "unknown error"
		for _, c := range resp.Content {
			if tc, ok := c.(mcp.TextContent); ok {
				msg = tc.Text
				break
			}
		}
		return ToolResult{Success: false, Error: msg, ToolName: t.name}, nil
	}

	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return ToolResult{Success: true, Content: strings.Join(texts, "\n"), ToolName: t.name}, nil
}

func toEnvSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func convertMCPSchema(schema mcp.ToolInputSchema) map[string]interface{} {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
