package engine

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// chessRules implements Rules on top of corentings/chess.
type chessRules struct{}

// NewChessRules returns the standard-chess rules oracle.
func NewChessRules() Rules {
	return chessRules{}
}

func (chessRules) Initial() Position {
	return newChessPosition(nchess.NewGame(), "")
}

func (chessRules) Apply(pos Position, mv Move) (Position, error) {
	cp, ok := pos.(*chessPosition)
	if !ok {
		return nil, fmt.Errorf("engine: position of type %T was not produced by chess rules", pos)
	}

	uci := strings.ToLower(strings.TrimSpace(mv.UCI()))
	next, err := cp.play(uci)
	if err != nil && mv.Promotion == "" {
		// An unannotated pawn promotion arrives as a bare from/to pair.
		// Queen is the default choice.
		if promoted, perr := cp.play(uci + "q"); perr == nil {
			return promoted, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, mv.UCI())
	}
	return next, nil
}

// chessPosition is an immutable snapshot. The FEN is the single source of
// truth; the remaining fields are derived from the same library state that
// produced it.
type chessPosition struct {
	fen       string
	turn      Side
	inCheck   bool
	checkmate bool
	draw      bool
}

func (p *chessPosition) Turn() Side      { return p.turn }
func (p *chessPosition) InCheck() bool   { return p.inCheck }
func (p *chessPosition) Checkmate() bool { return p.checkmate }
func (p *chessPosition) Draw() bool      { return p.draw }
func (p *chessPosition) FEN() string     { return p.fen }

// play reconstructs the game from the snapshot's FEN, applies one UCI move,
// and returns the resulting snapshot. The receiver is left untouched.
func (p *chessPosition) play(uci string) (*chessPosition, error) {
	game, err := p.game()
	if err != nil {
		return nil, err
	}

	before := game.Position()
	m, err := nchess.UCINotation{}.Decode(before, uci)
	if err != nil {
		return nil, err
	}
	if err := game.Move(m, nil); err != nil {
		return nil, err
	}

	san := nchess.AlgebraicNotation{}.Encode(before, m)
	return newChessPosition(game, san), nil
}

func (p *chessPosition) game() (*nchess.Game, error) {
	opt, err := nchess.FEN(p.fen)
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(opt), nil
}

// newChessPosition derives a snapshot from the game's current state.
// lastSAN is the SAN of the move that produced the state; its "+"/"#"
// suffix is the check signal (the initial position is never in check).
func newChessPosition(game *nchess.Game, lastSAN string) *chessPosition {
	p := &chessPosition{fen: game.FEN()}

	if game.Position().Turn() == nchess.White {
		p.turn = White
	} else {
		p.turn = Black
	}

	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		p.checkmate = true
	case nchess.Draw:
		p.draw = true
	}

	p.inCheck = strings.HasSuffix(lastSAN, "+") || strings.HasSuffix(lastSAN, "#")
	return p
}

// positionFromFEN builds a snapshot from a bare FEN. A bare FEN carries no
// last-move information, so the check flag starts false; it is only meant
// for setting up test positions that are not already in check.
func positionFromFEN(fen string) (*chessPosition, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return newChessPosition(nchess.NewGame(opt), ""), nil
}
