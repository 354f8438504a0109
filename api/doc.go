// Package api is the HTTP surface of chessduel.
//
// It mounts the WebSocket endpoint that players connect through, wires the
// hub's event dispatch table to the session authority, and exposes a small
// read-only REST view (sessions, stats, health) for inspection. All game
// mutation happens over the WebSocket protocol; the REST routes never touch
// game state.
package api
