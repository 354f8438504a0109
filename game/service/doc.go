// Package service implements the session authority for chessduel.
//
// The Authority is the only component that mutates a session's position or
// removes a session from the store. Every inbound event — new connection,
// move, resignation, state query, disconnect — is processed to completion,
// broadcasts included, before the next one begins: a single mutex
// serializes all operations, so no locks are needed anywhere else in the
// session path and no two events can interleave on the same position.
//
// Architecture:
//
// The service layer sits between the transport layer (WebSocket/HTTP/MCP)
// and the rules oracle. The transport reports connection lifecycle and
// delivers typed events; the authority resolves the connection to its
// session, enforces turn order, consults the oracle, and fans results out
// through the Messenger interface. Failures are reported to the
// originating connection only, as events, and never affect the opponent.
//
// Usage:
//
//	store := session.NewStore()
//	queue := session.NewQueue()
//	auth := service.NewAuthority(engine.NewChessRules(), store, queue, hub)
//
//	hub.OnConnect(auth.HandleConnect)
//	hub.OnDisconnect(auth.HandleDisconnect)
//
// Lifecycle:
//
// Connections are queued on arrival and paired FIFO, two at a time, with
// sides assigned by an unbiased coin flip. A session ends on checkmate,
// draw, resignation, or a participant's disconnect; it is then removed
// from the store and its id yields "no active session" from that point on.
package service
