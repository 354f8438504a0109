package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lucasreb/chessduel/game/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Chess Duel",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Chess Duel - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Chess Duel pairs anonymous WebSocket connections into chess games. This
MCP surface is read-only inspection of the running server; playing a game
requires a WebSocket connection.

AVAILABLE TOOLS:
- list_sessions: List all active game sessions
- get_session: Get details of a specific session (position, sides)
- server_stats: Active session and waiting player counts

Positions are reported in FEN notation.`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to retrieve",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get active session and waiting player counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall performs a GET against the REST API and decodes the response.
func (c *Client) apiCall(path string, result interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	err := c.apiCall("/api/sessions", &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (%s to move, started %s)\n",
			s.ID, s.SideToMove, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	sessionID, _ := args["session_id"].(string)

	var info service.SessionInfo
	err := c.apiCall(fmt.Sprintf("/api/sessions/%s", sessionID), &info)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats struct {
		ActiveSessions int `json:"active_sessions"`
		WaitingPlayers int `json:"waiting_players"`
		Connections    int `json:"connections"`
	}

	err := c.apiCall("/api/stats", &stats)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active sessions: %d\nWaiting players: %d\nConnections: %d\n",
		stats.ActiveSessions, stats.WaitingPlayers, stats.Connections)
	return mcp.NewToolResultText(result), nil
}

// Formatting helpers

func formatSessionInfo(info *service.SessionInfo) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Session: %s\n", info.ID))
	b.WriteString(fmt.Sprintf("Created: %s\n", info.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("White: %s\n", info.White))
	b.WriteString(fmt.Sprintf("Black: %s\n", info.Black))
	b.WriteString(fmt.Sprintf("Side to move: %s\n", info.SideToMove))
	b.WriteString(fmt.Sprintf("Position: %s\n", info.Position))
	return b.String()
}
