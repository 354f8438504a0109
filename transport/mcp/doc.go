// Package mcp provides a Model Context Protocol interface for chessduel.
//
// The Client is a thin proxy: every tool call is translated into a request
// against the REST API, so the MCP surface never touches game state
// directly and observes exactly what the HTTP inspection routes expose.
//
// MCP Tools:
//
//   - list_sessions: List all active game sessions
//   - get_session: Get details of one session by id
//   - server_stats: Current session and matchmaking counts
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: HTTP endpoint mounted by the main server at /mcp
//
// Gameplay itself is not exposed over MCP. Moves require a live WebSocket
// connection with an assigned player identity; MCP clients get the
// read-only inspection view.
package mcp
