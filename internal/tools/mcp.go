// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	mcpProtocolVersion = "2025-03-26"
	mcpClientName      = "autoswarm"
	mcpClientVersion   = "1.0.0"
)

// ServerConfig describes a remote MCP server reachable over HTTP.
type ServerConfig struct {
	ID    string
	Name  string
	URL   string
	Token string
}

// MCPClient connects to MCP servers and registers their tools.
type MCPClient struct {
	registry   *Registry
	httpClient *http.Client
	logger     *slog.Logger

	nextID atomic.Int64

	mu          sync.Mutex
	connections map[string][]Tool
}

// NewMCPClient creates a client that registers remote tools into registry.
func NewMCPClient(registry *Registry, logger *slog.Logger) *MCPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPClient{
		registry: registry,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:      logger,
		connections: make(map[string][]Tool),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type listToolsResult struct {
	Tools []struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		InputSchema map[string]any `json:"inputSchema"`
	} `json:"tools"`
}

// Connect initializes a session with the server, lists its tools and
// registers them. It returns the registered tools.
func (c *MCPClient) Connect(ctx context.Context, server ServerConfig) ([]Tool, error) {
	if server.ID == "" || server.URL == "" {
		return nil, fmt.Errorf("mcp server needs an id and url")
	}

	initParams := map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": mcpClientName, "version": mcpClientVersion},
	}
	if _, err := c.call(ctx, server, "initialize", initParams); err != nil {
		return nil, fmt.Errorf("mcp connection to %s failed: %w", server.ID, err)
	}

	raw, err := c.call(ctx, server, "tools/list", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("mcp tools/list on %s failed: %w", server.ID, err)
	}

	var listed listToolsResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &listed); err != nil {
			return nil, fmt.Errorf("failed to decode tools/list result: %w", err)
		}
	}

	tools := make([]Tool, 0, len(listed.Tools))
	for _, t := range listed.Tools {
		tool := Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			ServerID:    server.ID,
		}
		if tool.InputSchema == nil {
			tool.InputSchema = map[string]any{}
		}
		name := t.Name
		if err := c.registry.Register(tool, func(ctx context.Context, args map[string]any) (any, error) {
			return c.CallTool(ctx, server, name, args)
		}); err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}

	c.mu.Lock()
	c.connections[server.ID] = tools
	c.mu.Unlock()

	c.logger.Info("Connected to MCP server", "server_id", server.ID, "url", server.URL, "tools", len(tools))
	return tools, nil
}

// CallTool invokes a tool on the server and returns its decoded result.
func (c *MCPClient) CallTool(ctx context.Context, server ServerConfig, name string, args map[string]any) (any, error) {
	raw, err := c.call(ctx, server, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp tool call %s failed: %w", name, err)
	}

	var result any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to decode tool result: %w", err)
		}
	}
	return result, nil
}

// Disconnect forgets a server and unregisters its tools.
func (c *MCPClient) Disconnect(serverID string) {
	c.mu.Lock()
	delete(c.connections, serverID)
	c.mu.Unlock()

	removed := c.registry.Unregister(serverID)
	c.logger.Info("Disconnected MCP server", "server_id", serverID, "tools_removed", removed)
}

// IsConnected reports whether serverID has been connected.
func (c *MCPClient) IsConnected(serverID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.connections[serverID]
	return ok
}

// call posts one JSON-RPC request and returns its result.
func (c *MCPClient) call(ctx context.Context, server ServerConfig, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if server.Token != "" {
		req.Header.Set("Authorization", "Bearer "+server.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out rpcResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("mcp error %d: %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}
