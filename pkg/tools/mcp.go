// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

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
)

// MCPSourceConfig selects an MCP server to pull tools from.
type MCPSourceConfig struct {
	Name string
	// Transport is "stdio" or "sse".
	Transport string
	// Command (+ Args) for stdio; Endpoint URL for sse.
	Command  string
	Args     []string
	Endpoint string
	Env      map[string]string
}

// MCPToolSource connects to one MCP server and exposes its tools. The
// connection is established on Connect; tool calls reuse it.
type MCPToolSource struct {
	cfg MCPSourceConfig

	mu     sync.Mutex
	client *client.Client
	tools  []Tool
}

// NewMCPToolSource builds an unconnected source.
func NewMCPToolSource(cfg MCPSourceConfig) *MCPToolSource {
	return &MCPToolSource{cfg: cfg}
}

// Connect starts the client, initializes the protocol, and lists tools.
func (s *MCPToolSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	var mcpClient *client.Client
	var err error
	switch s.cfg.Transport {
	case "", "stdio":
		mcpClient, err = client.NewStdioMCPClient(s.cfg.Command, flattenEnv(s.cfg.Env), s.cfg.Args...)
	case "sse":
		mcpClient, err = client.NewSSEMCPClient(s.cfg.Endpoint)
	default:
		return fmt.Errorf("unsupported MCP transport %q (supported: stdio, sse)", s.cfg.Transport)
	}
	if err != nil {
		return fmt.Errorf("failed to create MCP client for %s: %w", s.cfg.Name, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP client for %s: %w", s.cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "quill", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP server %s: %w", s.cfg.Name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list tools from %s: %w", s.cfg.Name, err)
	}

	s.client = mcpClient
	s.tools = s.tools[:0]
	for _, t := range listResp.Tools {
		s.tools = append(s.tools, &mcpTool{
			source:      s,
			name:        t.Name,
			description: t.Description,
			schema:      schemaToMap(t.InputSchema),
		})
	}

	slog.Info("connected to MCP server",
		"name", s.cfg.Name, "transport", s.cfg.Transport, "tools", len(s.tools))
	return nil
}

// Tools returns the discovered tools. Empty before Connect.
func (s *MCPToolSource) Tools() []Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Close shuts down the client connection.
func (s *MCPToolSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

// mcpTool adapts one remote MCP tool to the Tool interface.
type mcpTool struct {
	source      *MCPToolSource
	name        string
	description string
	schema      map[string]any
}

func (t *mcpTool) Name() string               { return t.name }
func (t *mcpTool) Description() string        { return t.description }
func (t *mcpTool) Parameters() map[string]any { return t.schema }

func (t *mcpTool) Call(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	t.source.mu.Lock()
	mcpClient := t.source.client
	t.source.mu.Unlock()
	if mcpClient == nil {
		return Errf("MCP server %s is not connected", t.source.cfg.Name), nil
	}

	var args map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return Errf("invalid arguments: %v", err), nil
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return Errf("MCP call failed: %v", err), nil
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	joined := strings.Join(texts, "\n")
	if resp.IsError {
		if joined == "" {
			joined = "unknown error"
		}
		return Errf("%s", joined), nil
	}
	if joined == "" {
		joined = "(no content)"
	}
	return Ok(joined), nil
}
