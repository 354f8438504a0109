package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lucasreb/chessduel/game/engine"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrParticipantBusy      = errors.New("participant already in a session")
)

// Session is a paired two-participant game instance. Participants and side
// assignment are fixed at creation; only Position changes afterwards, and
// only the session authority changes it.
type Session struct {
	ID        string
	Position  engine.Position
	White     string
	Black     string
	CreatedAt time.Time
}

// SideOf returns the side bound to connID, or false if connID is not a
// participant.
func (s *Session) SideOf(connID string) (engine.Side, bool) {
	switch connID {
	case s.White:
		return engine.White, true
	case s.Black:
		return engine.Black, true
	}
	return "", false
}

// Opponent returns the other participant's connection id.
func (s *Session) Opponent(connID string) (string, bool) {
	switch connID {
	case s.White:
		return s.Black, true
	case s.Black:
		return s.White, true
	}
	return "", false
}

// Participants returns both connection ids, white first.
func (s *Session) Participants() []string {
	return []string{s.White, s.Black}
}

// PairID derives a session id from an unordered pair of connection ids.
// Both orderings produce the same id, so a pair can be looked up
// idempotently and can never hold two sessions at once.
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Store is the single source of truth for active sessions. It keeps a
// secondary index from connection id to session id so that inbound events,
// which carry only a connection identity, resolve in O(1).
type Store struct {
	sessions map[string]*Session
	byConn   map[string]string
	mu       sync.RWMutex
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		byConn:   make(map[string]string),
	}
}

// Put adds a session. It fails if the id is taken or if either participant
// is already in another session.
func (st *Store) Put(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.sessions[s.ID]; exists {
		return fmt.Errorf("%w: %s", ErrSessionAlreadyExists, s.ID)
	}
	for _, connID := range s.Participants() {
		if _, busy := st.byConn[connID]; busy {
			return fmt.Errorf("%w: %s", ErrParticipantBusy, connID)
		}
	}

	st.sessions[s.ID] = s
	st.byConn[s.White] = s.ID
	st.byConn[s.Black] = s.ID
	return nil
}

// Get retrieves a session by id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, exists := st.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ByConn resolves the session a connection participates in.
func (st *Store) ByConn(connID string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	id, exists := st.byConn[connID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return st.sessions[id], nil
}

// Remove deletes a session and its participant index entries. Removing an
// absent id is a no-op.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, exists := st.sessions[id]
	if !exists {
		return
	}
	delete(st.sessions, id)
	delete(st.byConn, s.White)
	delete(st.byConn, s.Black)
}

// List returns all active sessions.
func (st *Store) List() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		result = append(result, s)
	}
	return result
}

// Count returns the number of active sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
