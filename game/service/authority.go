package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/lucasreb/chessduel/game/engine"
	"github.com/lucasreb/chessduel/game/session"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrNotAParticipant = errors.New("not a participant")
)

// Authority defines all session-mutating operations plus the read-only
// inspection views. Connection lifecycle handlers are plain methods so the
// transport can invoke them without knowing anything about sessions.
type Authority interface {
	// Connection lifecycle
	HandleConnect(connID string)
	HandleDisconnect(connID string)

	// Game operations
	SubmitMove(connID string, mv engine.Move) error
	Resign(connID string) error
	QueryState(connID string) error

	// Inspection
	Session(id string) (*SessionInfo, error)
	Sessions() []*SessionInfo
	Stats() Stats
}

// authorityImpl implements the Authority interface. The mutex serializes
// every operation end to end, which is what makes session mutation safe
// without per-session locking.
type authorityImpl struct {
	rules engine.Rules
	store *session.Store
	queue *session.Queue
	out   Messenger
	mu    sync.Mutex
}

// NewAuthority creates the session authority.
func NewAuthority(rules engine.Rules, store *session.Store, queue *session.Queue, out Messenger) Authority {
	return &authorityImpl{
		rules: rules,
		store: store,
		queue: queue,
		out:   out,
	}
}

// HandleConnect queues the new connection and pairs waiting connections
// two at a time for as long as the queue allows.
func (a *authorityImpl) HandleConnect(connID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.queue.Enqueue(connID)
	for {
		first, second, ok := a.queue.DequeuePair()
		if !ok {
			return
		}
		a.startSession(first, second)
	}
}

// startSession creates a session for a dequeued pair. Side assignment is an
// unbiased coin flip, independent of queue order. Both queue entries are
// already consumed when the start events go out.
func (a *authorityImpl) startSession(first, second string) {
	white, black := first, second
	if !coinFlip() {
		white, black = black, white
	}

	s := &session.Session{
		ID:        session.PairID(first, second),
		Position:  a.rules.Initial(),
		White:     white,
		Black:     black,
		CreatedAt: time.Now(),
	}
	if err := a.store.Put(s); err != nil {
		log.Printf("Failed to create session for (%s, %s): %v", first, second, err)
		return
	}

	log.Printf("Session %s started (white=%s, black=%s)", s.ID, white, black)

	a.out.Send(white, EventGameStart, GameStart{
		Side:       engine.White,
		OpponentID: black,
		Position:   s.Position.FEN(),
		SideToMove: s.Position.Turn(),
	})
	a.out.Send(black, EventGameStart, GameStart{
		Side:       engine.Black,
		OpponentID: white,
		Position:   s.Position.FEN(),
		SideToMove: s.Position.Turn(),
	})
}

// SubmitMove validates and applies a move from connID. Rejections go to the
// submitter only and never mutate the position; an accepted move is
// broadcast to both participants, followed by a termination event if the
// new position is terminal.
func (a *authorityImpl) SubmitMove(connID string, mv engine.Move) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.store.ByConn(connID)
	if err != nil {
		a.out.Send(connID, EventNoGame, nil)
		return ErrNoActiveSession
	}

	side, ok := s.SideOf(connID)
	if !ok {
		// Unreachable via the by-connection index; kept as a guard.
		a.out.Send(connID, EventInvalidMove, Rejection{Message: "not a participant in this game"})
		return ErrNotAParticipant
	}

	if s.Position.Turn() != side {
		a.out.Send(connID, EventInvalidTurn, Rejection{Message: "it is not your turn"})
		return ErrNotYourTurn
	}

	next, err := a.rules.Apply(s.Position, mv)
	if err != nil {
		a.out.Send(connID, EventInvalidMove, Rejection{Message: err.Error()})
		return err
	}

	s.Position = next
	a.out.Broadcast(s.Participants(), EventGameUpdate, GameUpdate{
		Position:    next.FEN(),
		LastMove:    &mv,
		SideToMove:  next.Turn(),
		InCheck:     next.InCheck(),
		InCheckmate: next.Checkmate(),
		InDraw:      next.Draw(),
	})

	switch {
	case next.Checkmate():
		a.finish(s, fmt.Sprintf("%s wins by checkmate", side.Title()))
	case next.Draw():
		a.finish(s, "Draw")
	}
	return nil
}

// Resign ends the session in favor of the opponent. Resigning with no
// active session is silently ignored.
func (a *authorityImpl) Resign(connID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.store.ByConn(connID)
	if err != nil {
		return nil
	}
	side, ok := s.SideOf(connID)
	if !ok {
		return ErrNotAParticipant
	}

	a.finish(s, fmt.Sprintf("%s wins by resignation", side.Opponent().Title()))
	return nil
}

// QueryState sends a non-mutating snapshot of the requester's session to
// the requester only.
func (a *authorityImpl) QueryState(connID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.store.ByConn(connID)
	if err != nil {
		a.out.Send(connID, EventNoGame, nil)
		return ErrNoActiveSession
	}

	pos := s.Position
	a.out.Send(connID, EventGameUpdate, GameUpdate{
		Position:    pos.FEN(),
		SideToMove:  pos.Turn(),
		InCheck:     pos.InCheck(),
		InCheckmate: pos.Checkmate(),
		InDraw:      pos.Draw(),
	})
	return nil
}

// HandleDisconnect routes a dropped connection: abandonment of an active
// session, removal from the waiting queue, or a silent no-op.
func (a *authorityImpl) HandleDisconnect(connID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.store.ByConn(connID)
	if err == nil {
		// The disconnecting side has no transport; only the opponent is told.
		if opp, ok := s.Opponent(connID); ok {
			a.out.Send(opp, EventOpponentGone, nil)
		}
		a.store.Remove(s.ID)
		log.Printf("Session %s abandoned by %s", s.ID, connID)
		return
	}

	if a.queue.Remove(connID) {
		log.Printf("Waiting connection %s left the queue", connID)
	}
}

// finish broadcasts the termination event to both participants and then
// removes the session. Removal is last so the result is observable before
// the session id disappears.
func (a *authorityImpl) finish(s *session.Session, result string) {
	a.out.Broadcast(s.Participants(), EventGameOver, GameOver{Result: result})
	a.store.Remove(s.ID)
	log.Printf("Session %s over: %s", s.ID, result)
}

// Session returns a read-only view of one active session.
func (a *authorityImpl) Session(id string) (*SessionInfo, error) {
	s, err := a.store.Get(id)
	if err != nil {
		return nil, err
	}
	return sessionInfo(s), nil
}

// Sessions returns read-only views of all active sessions.
func (a *authorityImpl) Sessions() []*SessionInfo {
	sessions := a.store.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, sessionInfo(s))
	}
	return result
}

// Stats reports current matchmaking and session counts.
func (a *authorityImpl) Stats() Stats {
	return Stats{
		ActiveSessions: a.store.Count(),
		WaitingPlayers: a.queue.Len(),
	}
}

func sessionInfo(s *session.Session) *SessionInfo {
	return &SessionInfo{
		ID:         s.ID,
		Position:   s.Position.FEN(),
		SideToMove: s.Position.Turn(),
		White:      s.White,
		Black:      s.Black,
		CreatedAt:  s.CreatedAt,
	}
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return true
	}
	return n.Int64() == 0
}
