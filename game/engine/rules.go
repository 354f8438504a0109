package engine

import "errors"

// ErrIllegalMove is returned by Rules.Apply for any move the rules reject,
// including structurally invalid squares and from==to.
var ErrIllegalMove = errors.New("illegal move")

// Side identifies one of the two roles in a session.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Title returns the capitalized form used in result strings.
func (s Side) Title() string {
	if s == White {
		return "White"
	}
	return "Black"
}

// Move is a proposed state transition as submitted by a client.
// Promotion is the piece letter ("q", "r", "b", "n") and may be empty;
// a promotion move without a piece choice defaults to queen.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI returns the move in UCI notation (e.g. "e2e4", "a7a8q").
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion
}

// Position is an immutable game state snapshot. All derived facts are
// computed from the same underlying state, so they can never disagree with
// the FEN encoding.
type Position interface {
	// Turn reports the side to move.
	Turn() Side

	// InCheck reports whether the side to move is in check.
	InCheck() bool

	// Checkmate reports whether the position is checkmate.
	Checkmate() bool

	// Draw reports whether the position is drawn (stalemate, insufficient
	// material, or a forced repetition/move-count draw).
	Draw() bool

	// FEN returns the position's wire encoding.
	FEN() string
}

// Rules is the oracle contract consumed by the session authority.
type Rules interface {
	// Initial returns the starting position.
	Initial() Position

	// Apply validates mv against pos and returns the resulting position.
	// It returns an error wrapping ErrIllegalMove when the move is
	// rejected; pos is never mutated either way.
	Apply(pos Position, mv Move) (Position, error)
}
