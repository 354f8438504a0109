package service

import (
	"time"

	"github.com/lucasreb/chessduel/game/engine"
)

// Inbound event names, as delivered by the transport's dispatch table.
const (
	EventMove     = "move"
	EventResign   = "resign"
	EventGetState = "get:state"
)

// Outbound event names.
const (
	EventGameStart    = "game:start"
	EventGameUpdate   = "game:update"
	EventGameOver     = "game:over"
	EventInvalidMove  = "invalid:move"
	EventInvalidTurn  = "invalid:turn"
	EventOpponentGone = "opponent:disconnect"
	EventNoGame       = "no:game"
)

// Messenger delivers typed events to one connection or a group of
// connections. The transport adapter implements it; per-connection
// delivery order follows call order.
type Messenger interface {
	Send(connID, event string, payload any)
	Broadcast(connIDs []string, event string, payload any)
}

// GameStart tells a participant its assigned side and the initial state.
type GameStart struct {
	Side       engine.Side `json:"side"`
	OpponentID string      `json:"opponentId"`
	Position   string      `json:"position"`
	SideToMove engine.Side `json:"sideToMove"`
}

// GameUpdate carries a validated state transition to both participants.
// A state-query snapshot uses the same shape with LastMove omitted.
type GameUpdate struct {
	Position    string       `json:"position"`
	LastMove    *engine.Move `json:"lastMove,omitempty"`
	SideToMove  engine.Side  `json:"sideToMove"`
	InCheck     bool         `json:"inCheck"`
	InCheckmate bool         `json:"inCheckmate"`
	InDraw      bool         `json:"inDraw"`
}

// GameOver announces a terminal outcome with a human-readable result.
type GameOver struct {
	Result string `json:"result"`
}

// Rejection reports a failed request to the originating connection only.
type Rejection struct {
	Message string `json:"message"`
}

// SessionInfo is a read-only view of an active session for the inspection
// surface.
type SessionInfo struct {
	ID         string      `json:"id"`
	Position   string      `json:"position"`
	SideToMove engine.Side `json:"side_to_move"`
	White      string      `json:"white"`
	Black      string      `json:"black"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Stats summarizes matchmaking and session state.
type Stats struct {
	ActiveSessions int `json:"active_sessions"`
	WaitingPlayers int `json:"waiting_players"`
}
