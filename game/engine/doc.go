// Package engine provides the rules oracle for chessduel.
//
// The engine package is the legality boundary of the server: every state
// transition a session performs goes through Rules.Apply, which either
// returns a new immutable Position or rejects the move. Nothing above this
// package inspects chess rules; the session authority only reads the
// derived facts a Position exposes (side to move, check, checkmate, draw,
// FEN encoding).
//
// Core Types:
//
// Rules is the oracle contract: Initial produces the starting position and
// Apply validates and plays a single move. Position is an immutable
// snapshot; applying a move never mutates the position it was applied to.
// Move carries the from/to squares and an optional promotion piece.
//
// Usage:
//
//	rules := engine.NewChessRules()
//	pos := rules.Initial()
//
//	next, err := rules.Apply(pos, engine.Move{From: "e2", To: "e4"})
//	if errors.Is(err, engine.ErrIllegalMove) {
//		// reject, position unchanged
//	}
//
// The chess implementation is backed by github.com/corentings/chess/v2.
// Any other implementation of Rules (including a scripted stub) is
// substitutable, which is how the session authority is tested.
package engine
