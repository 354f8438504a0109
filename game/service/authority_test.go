package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lucasreb/chessduel/game/engine"
	"github.com/lucasreb/chessduel/game/session"
)

// recorder is a Messenger that records every delivery in order.
type sentEvent struct {
	To      string
	Event   string
	Payload any
}

type recorder struct {
	events []sentEvent
}

func (r *recorder) Send(connID, event string, payload any) {
	r.events = append(r.events, sentEvent{To: connID, Event: event, Payload: payload})
}

func (r *recorder) Broadcast(connIDs []string, event string, payload any) {
	for _, connID := range connIDs {
		r.events = append(r.events, sentEvent{To: connID, Event: event, Payload: payload})
	}
}

func (r *recorder) byConn(connID string) []sentEvent {
	var result []sentEvent
	for _, ev := range r.events {
		if ev.To == connID {
			result = append(result, ev)
		}
	}
	return result
}

func (r *recorder) reset() {
	r.events = nil
}

// stubPosition and stubRules give the authority a scripted oracle: every
// move is legal unless From is "bad"; a move to "mate" or "draw" produces
// the corresponding terminal position.
type stubPosition struct {
	turn  engine.Side
	fen   string
	check bool
	mate  bool
	draw  bool
}

func (p *stubPosition) Turn() engine.Side { return p.turn }
func (p *stubPosition) InCheck() bool     { return p.check }
func (p *stubPosition) Checkmate() bool   { return p.mate }
func (p *stubPosition) Draw() bool        { return p.draw }
func (p *stubPosition) FEN() string       { return p.fen }

type stubRules struct{}

func (stubRules) Initial() engine.Position {
	return &stubPosition{turn: engine.White, fen: "start"}
}

func (stubRules) Apply(pos engine.Position, mv engine.Move) (engine.Position, error) {
	p := pos.(*stubPosition)
	if mv.From == "bad" {
		return nil, fmt.Errorf("%w: %s", engine.ErrIllegalMove, mv.UCI())
	}
	next := &stubPosition{turn: p.turn.Opponent(), fen: p.fen + " " + mv.UCI()}
	switch mv.To {
	case "mate":
		next.mate = true
		next.check = true
	case "draw":
		next.draw = true
	}
	return next, nil
}

func newTestAuthority() (Authority, *recorder) {
	rec := &recorder{}
	auth := NewAuthority(stubRules{}, session.NewStore(), session.NewQueue(), rec)
	return auth, rec
}

// pair connects both ids and returns them ordered (white, black) as
// reported by the game:start events.
func pair(t *testing.T, auth Authority, rec *recorder, a, b string) (white, black string) {
	t.Helper()
	auth.HandleConnect(a)
	auth.HandleConnect(b)

	for _, connID := range []string{a, b} {
		for _, ev := range rec.byConn(connID) {
			if ev.Event != EventGameStart {
				continue
			}
			start := ev.Payload.(GameStart)
			if start.Side == engine.White {
				white = connID
			} else {
				black = connID
			}
		}
	}
	if white == "" || black == "" {
		t.Fatalf("Pairing of %s and %s did not assign both sides", a, b)
	}
	return white, black
}

func TestAuthority_Pairing(t *testing.T) {
	t.Run("single connection waits", func(t *testing.T) {
		auth, rec := newTestAuthority()
		auth.HandleConnect("A")

		if len(rec.events) != 0 {
			t.Errorf("Expected no events while waiting, got %d", len(rec.events))
		}
		if stats := auth.Stats(); stats.WaitingPlayers != 1 || stats.ActiveSessions != 0 {
			t.Errorf("Expected 1 waiting / 0 active, got %+v", stats)
		}
	})

	t.Run("second connection starts a session", func(t *testing.T) {
		auth, rec := newTestAuthority()
		auth.HandleConnect("A")
		auth.HandleConnect("B")

		var starts []GameStart
		for _, connID := range []string{"A", "B"} {
			events := rec.byConn(connID)
			if len(events) != 1 || events[0].Event != EventGameStart {
				t.Fatalf("Expected exactly one game:start for %s, got %v", connID, events)
			}
			starts = append(starts, events[0].Payload.(GameStart))
		}

		if starts[0].Side == starts[1].Side {
			t.Errorf("Sides must be complementary, both got %s", starts[0].Side)
		}
		if starts[0].Position != starts[1].Position {
			t.Error("Both participants must receive the identical initial position")
		}
		if starts[0].OpponentID != "B" || starts[1].OpponentID != "A" {
			t.Errorf("Opponent ids wrong: %s / %s", starts[0].OpponentID, starts[1].OpponentID)
		}
		if starts[0].SideToMove != engine.White {
			t.Errorf("Expected white to move at start, got %s", starts[0].SideToMove)
		}

		if stats := auth.Stats(); stats.WaitingPlayers != 0 || stats.ActiveSessions != 1 {
			t.Errorf("Expected 0 waiting / 1 active, got %+v", stats)
		}
	})

	t.Run("duplicate connect does not double-queue", func(t *testing.T) {
		auth, _ := newTestAuthority()
		auth.HandleConnect("A")
		auth.HandleConnect("A")

		if stats := auth.Stats(); stats.WaitingPlayers != 1 || stats.ActiveSessions != 0 {
			t.Errorf("Duplicate enqueue created a slot: %+v", stats)
		}

		auth.HandleConnect("B")
		if stats := auth.Stats(); stats.ActiveSessions != 1 {
			t.Errorf("Expected pairing after real second player, got %+v", stats)
		}
	})

	t.Run("pairing is fifo", func(t *testing.T) {
		auth, rec := newTestAuthority()
		for _, connID := range []string{"A", "B", "C", "D"} {
			auth.HandleConnect(connID)
		}

		aStart := rec.byConn("A")[0].Payload.(GameStart)
		cStart := rec.byConn("C")[0].Payload.(GameStart)
		if aStart.OpponentID != "B" {
			t.Errorf("A should pair with B, got %s", aStart.OpponentID)
		}
		if cStart.OpponentID != "D" {
			t.Errorf("C should pair with D, got %s", cStart.OpponentID)
		}
		if stats := auth.Stats(); stats.ActiveSessions != 2 {
			t.Errorf("Expected 2 sessions, got %+v", stats)
		}
	})
}

// Side assignment must be an unbiased coin flip, not a function of queue
// position.
func TestAuthority_SideBalance(t *testing.T) {
	auth, rec := newTestAuthority()

	const trials = 400
	firstWhite := 0
	for i := 0; i < trials; i++ {
		rec.reset()
		a := fmt.Sprintf("first-%d", i)
		b := fmt.Sprintf("second-%d", i)
		white, _ := pair(t, auth, rec, a, b)
		if white == a {
			firstWhite++
		}
		// Tear down so conn ids never accumulate sessions.
		auth.HandleDisconnect(a)
		auth.HandleDisconnect(b)
	}

	// ~8.5 standard deviations around the mean of 200; a deterministic
	// assignment lands at 0 or 400.
	if firstWhite < 140 || firstWhite > 260 {
		t.Errorf("Side assignment looks biased: first connection got white %d/%d times", firstWhite, trials)
	}
}

func TestAuthority_SubmitMove(t *testing.T) {
	t.Run("no active session", func(t *testing.T) {
		auth, rec := newTestAuthority()

		err := auth.SubmitMove("ghost", engine.Move{From: "e2", To: "e4"})
		if !errors.Is(err, ErrNoActiveSession) {
			t.Fatalf("Expected ErrNoActiveSession, got %v", err)
		}
		events := rec.byConn("ghost")
		if len(events) != 1 || events[0].Event != EventNoGame {
			t.Errorf("Expected a single no:game event, got %v", events)
		}
	})

	t.Run("out of turn", func(t *testing.T) {
		auth, rec := newTestAuthority()
		white, black := pair(t, auth, rec, "A", "B")
		rec.reset()

		err := auth.SubmitMove(black, engine.Move{From: "e7", To: "e5"})
		if !errors.Is(err, ErrNotYourTurn) {
			t.Fatalf("Expected ErrNotYourTurn, got %v", err)
		}

		events := rec.byConn(black)
		if len(events) != 1 || events[0].Event != EventInvalidTurn {
			t.Fatalf("Expected a single invalid:turn for the submitter, got %v", events)
		}
		if len(rec.byConn(white)) != 0 {
			t.Error("Opponent must not hear about a rejected move")
		}

		// No mutation: the snapshot still shows the initial position.
		rec.reset()
		auth.QueryState(black)
		snapshot := rec.byConn(black)[0].Payload.(GameUpdate)
		if snapshot.Position != "start" || snapshot.SideToMove != engine.White {
			t.Errorf("Rejected move mutated position: %+v", snapshot)
		}
	})

	t.Run("illegal move", func(t *testing.T) {
		auth, rec := newTestAuthority()
		white, black := pair(t, auth, rec, "A", "B")
		rec.reset()

		err := auth.SubmitMove(white, engine.Move{From: "bad", To: "e4"})
		if !errors.Is(err, engine.ErrIllegalMove) {
			t.Fatalf("Expected ErrIllegalMove, got %v", err)
		}

		events := rec.byConn(white)
		if len(events) != 1 || events[0].Event != EventInvalidMove {
			t.Fatalf("Expected a single invalid:move for the submitter, got %v", events)
		}
		if rejection := events[0].Payload.(Rejection); rejection.Message == "" {
			t.Error("Rejection should carry a message")
		}
		if len(rec.byConn(black)) != 0 {
			t.Error("Opponent must not hear about an illegal move")
		}
	})

	t.Run("legal move broadcast", func(t *testing.T) {
		auth, rec := newTestAuthority()
		white, black := pair(t, auth, rec, "A", "B")
		rec.reset()

		mv := engine.Move{From: "e2", To: "e4"}
		if err := auth.SubmitMove(white, mv); err != nil {
			t.Fatalf("SubmitMove failed: %v", err)
		}

		for _, connID := range []string{white, black} {
			events := rec.byConn(connID)
			if len(events) != 1 || events[0].Event != EventGameUpdate {
				t.Fatalf("Expected exactly one game:update for %s, got %v", connID, events)
			}
			update := events[0].Payload.(GameUpdate)
			if update.SideToMove != engine.Black {
				t.Errorf("Expected side to move flipped to black, got %s", update.SideToMove)
			}
			if update.LastMove == nil || *update.LastMove != mv {
				t.Errorf("Expected last move %+v, got %+v", mv, update.LastMove)
			}
			if update.Position != "start e2e4" {
				t.Errorf("Unexpected position: %s", update.Position)
			}
			if update.InCheckmate || update.InDraw {
				t.Error("Non-terminal move must not carry terminal flags")
			}
		}
		if stats := auth.Stats(); stats.ActiveSessions != 1 {
			t.Errorf("Session must stay active, got %+v", stats)
		}
	})

	t.Run("checkmate terminates the session", func(t *testing.T) {
		auth, rec := newTestAuthority()
		white, black := pair(t, auth, rec, "A", "B")
		rec.reset()

		if err := auth.SubmitMove(white, engine.Move{From: "d8", To: "mate"}); err != nil {
			t.Fatalf("SubmitMove failed: %v", err)
		}

		for _, connID := range []string{white, black} {
			events := rec.byConn(connID)
			if len(events) != 2 {
				t.Fatalf("Expected update then game:over for %s, got %v", connID, events)
			}
			if events[0].Event != EventGameUpdate || events[1].Event != EventGameOver {
				t.Fatalf("Wrong event order for %s: %s, %s", connID, events[0].Event, events[1].Event)
			}
			if !events[0].Payload.(GameUpdate).InCheckmate {
				t.Error("Terminal update should flag checkmate")
			}
			over := events[1].Payload.(GameOver)
			if over.Result != "White wins by checkmate" {
				t.Errorf("Unexpected result: %q", over.Result)
			}
		}

		if stats := auth.Stats(); stats.ActiveSessions != 0 {
			t.Errorf("Terminated session still in store: %+v", stats)
		}
		if err := auth.SubmitMove(white, engine.Move{From: "e2", To: "e4"}); !errors.Is(err, ErrNoActiveSession) {
			t.Errorf("Moves after termination must fail with ErrNoActiveSession, got %v", err)
		}
	})

	t.Run("draw terminates the session", func(t *testing.T) {
		auth, rec := newTestAuthority()
		white, _ := pair(t, auth, rec, "A", "B")
		rec.reset()

		if err := auth.SubmitMove(white, engine.Move{From: "e2", To: "draw"}); err != nil {
			t.Fatalf("SubmitMove failed: %v", err)
		}
		events := rec.byConn(white)
		if over := events[len(events)-1].Payload.(GameOver); over.Result != "Draw" {
			t.Errorf("Expected result Draw, got %q", over.Result)
		}
		if stats := auth.Stats(); stats.ActiveSessions != 0 {
			t.Errorf("Drawn session still in store: %+v", stats)
		}
	})
}

func TestAuthority_Resign(t *testing.T) {
	t.Run("opponent wins", func(t *testing.T) {
		auth, rec := newTestAuthority()
		white, black := pair(t, auth, rec, "A", "B")
		rec.reset()

		if err := auth.Resign(black); err != nil {
			t.Fatalf("Resign failed: %v", err)
		}

		for _, connID := range []string{white, black} {
			events := rec.byConn(connID)
			if len(events) != 1 || events[0].Event != EventGameOver {
				t.Fatalf("Expected a single game:over for %s, got %v", connID, events)
			}
			over := events[0].Payload.(GameOver)
			if over.Result != "White wins by resignation" {
				t.Errorf("Unexpected result: %q", over.Result)
			}
		}
		if stats := auth.Stats(); stats.ActiveSessions != 0 {
			t.Errorf("Resigned session still in store: %+v", stats)
		}
	})

	t.Run("resign without a session is silent", func(t *testing.T) {
		auth, rec := newTestAuthority()
		if err := auth.Resign("ghost"); err != nil {
			t.Errorf("Expected silent no-op, got %v", err)
		}
		if len(rec.events) != 0 {
			t.Errorf("Expected no events, got %v", rec.events)
		}
	})
}

func TestAuthority_QueryState(t *testing.T) {
	t.Run("no active session", func(t *testing.T) {
		auth, rec := newTestAuthority()
		if err := auth.QueryState("ghost"); !errors.Is(err, ErrNoActiveSession) {
			t.Fatalf("Expected ErrNoActiveSession, got %v", err)
		}
		events := rec.byConn("ghost")
		if len(events) != 1 || events[0].Event != EventNoGame {
			t.Errorf("Expected a single no:game, got %v", events)
		}
	})

	t.Run("snapshot goes to the requester only", func(t *testing.T) {
		auth, rec := newTestAuthority()
		white, black := pair(t, auth, rec, "A", "B")
		auth.SubmitMove(white, engine.Move{From: "e2", To: "e4"})
		rec.reset()

		if err := auth.QueryState(black); err != nil {
			t.Fatalf("QueryState failed: %v", err)
		}

		events := rec.byConn(black)
		if len(events) != 1 || events[0].Event != EventGameUpdate {
			t.Fatalf("Expected one game:update snapshot, got %v", events)
		}
		snapshot := events[0].Payload.(GameUpdate)
		if snapshot.Position != "start e2e4" || snapshot.SideToMove != engine.Black {
			t.Errorf("Snapshot out of date: %+v", snapshot)
		}
		if snapshot.LastMove != nil {
			t.Error("Snapshot must not carry a last move")
		}
		if len(rec.byConn(white)) != 0 {
			t.Error("Snapshot must not reach the opponent")
		}
	})
}

func TestAuthority_Disconnect(t *testing.T) {
	t.Run("waiting connection leaves the queue", func(t *testing.T) {
		auth, rec := newTestAuthority()
		auth.HandleConnect("A")
		auth.HandleDisconnect("A")

		if stats := auth.Stats(); stats.WaitingPlayers != 0 {
			t.Errorf("Expected empty queue, got %+v", stats)
		}

		// A later pairing involves only the remaining identities.
		auth.HandleConnect("B")
		auth.HandleConnect("C")
		bStart := rec.byConn("B")[0].Payload.(GameStart)
		if bStart.OpponentID != "C" {
			t.Errorf("B should pair with C, got %s", bStart.OpponentID)
		}
		if len(rec.byConn("A")) != 0 {
			t.Error("Disconnected waiter must not be paired")
		}
	})

	t.Run("mid-game disconnect abandons the session", func(t *testing.T) {
		auth, rec := newTestAuthority()
		white, black := pair(t, auth, rec, "A", "B")
		rec.reset()

		auth.HandleDisconnect(black)

		events := rec.byConn(white)
		if len(events) != 1 || events[0].Event != EventOpponentGone {
			t.Fatalf("Expected opponent:disconnect for the survivor, got %v", events)
		}
		if len(rec.byConn(black)) != 0 {
			t.Error("The disconnected side has no transport; nothing may be sent to it")
		}

		for _, connID := range []string{white, black} {
			if err := auth.SubmitMove(connID, engine.Move{From: "e2", To: "e4"}); !errors.Is(err, ErrNoActiveSession) {
				t.Errorf("Move by %s after abandonment: expected ErrNoActiveSession, got %v", connID, err)
			}
		}
	})

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		auth, rec := newTestAuthority()
		auth.HandleDisconnect("ghost")
		if len(rec.events) != 0 {
			t.Errorf("Expected no events, got %v", rec.events)
		}
	})
}

func TestAuthority_Inspection(t *testing.T) {
	auth, rec := newTestAuthority()
	white, black := pair(t, auth, rec, "A", "B")

	sessions := auth.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	info := sessions[0]
	if info.White != white || info.Black != black {
		t.Errorf("Participants wrong: %+v", info)
	}
	if info.SideToMove != engine.White || info.Position != "start" {
		t.Errorf("State wrong: %+v", info)
	}

	byID, err := auth.Session(info.ID)
	if err != nil || byID.ID != info.ID {
		t.Errorf("Session(%s) = (%v, %v)", info.ID, byID, err)
	}
	if _, err := auth.Session("missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

// End-to-end against the real chess oracle: pair, open, resign. The
// broadcast position must match an independent fold of the same moves.
func TestAuthority_ChessScenario(t *testing.T) {
	rules := engine.NewChessRules()
	rec := &recorder{}
	auth := NewAuthority(rules, session.NewStore(), session.NewQueue(), rec)

	white, black := pair(t, auth, rec, "A", "B")
	start := rec.byConn(white)[0].Payload.(GameStart)
	if start.Position != rules.Initial().FEN() {
		t.Errorf("Start position drifted from the oracle: %s", start.Position)
	}
	rec.reset()

	mv := engine.Move{From: "e2", To: "e4"}
	if err := auth.SubmitMove(white, mv); err != nil {
		t.Fatalf("Opening move failed: %v", err)
	}

	folded, err := rules.Apply(rules.Initial(), mv)
	if err != nil {
		t.Fatalf("Fold failed: %v", err)
	}
	for _, connID := range []string{white, black} {
		update := rec.byConn(connID)[0].Payload.(GameUpdate)
		if update.Position != folded.FEN() {
			t.Errorf("Broadcast position drifted from the oracle fold:\n  got  %s\n  want %s", update.Position, folded.FEN())
		}
		if update.SideToMove != engine.Black {
			t.Errorf("Expected black to move, got %s", update.SideToMove)
		}
	}
	rec.reset()

	if err := auth.Resign(black); err != nil {
		t.Fatalf("Resign failed: %v", err)
	}
	over := rec.byConn(white)[0].Payload.(GameOver)
	if over.Result != "White wins by resignation" {
		t.Errorf("Unexpected result: %q", over.Result)
	}
	if err := auth.SubmitMove(white, mv); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Expected ErrNoActiveSession after game over, got %v", err)
	}
}
