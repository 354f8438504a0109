// Package session holds the process-wide mutable state of chessduel: the
// store of active sessions and the matchmaking queue of waiting
// connections.
//
// A Session binds exactly two connection identities to the two sides of a
// game. Its id is derived from the unordered pair of participants, so at
// most one session can ever exist for a given pair, and the Store enforces
// that a connection belongs to at most one session at a time.
//
// Both containers are in-memory only. Nothing survives a process restart;
// the spec-level resource model is a single process with no persisted
// backing.
package session
