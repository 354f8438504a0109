// Package websocket is the connection registry and transport adapter for
// chessduel.
//
// The Hub upgrades HTTP requests, assigns each socket an opaque connection
// identity, and routes inbound {event, data} envelopes through a dispatch
// table registered with Handle. Connection lifecycle is reported through
// OnConnect/OnDisconnect callbacks; outbound delivery goes through Send and
// Broadcast, which together satisfy the session authority's Messenger
// interface.
//
// Each client runs the usual two pumps: readPump enforces the read limit
// and pong deadline and dispatches inbound events; writePump drains the
// buffered send channel and keeps the connection alive with pings.
// Per-client delivery order follows Send call order.
package websocket
