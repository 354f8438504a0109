// Command clientsim exercises a running chessduel server with simulated
// players. It dials pairs of WebSocket connections, waits for matchmaking to
// pair them, plays a short scripted opening, and resigns, reporting the side
// assignment balance at the end.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lucasreb/chessduel/game/engine"
	"github.com/lucasreb/chessduel/game/service"
	wshub "github.com/lucasreb/chessduel/transport/websocket"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "clientsim",
		Usage: "simulate player pairs against a chessduel server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Value: "ws://localhost:8080/ws",
				Usage: "WebSocket endpoint to dial",
			},
			&cli.IntFlag{
				Name:  "pairs",
				Value: 1,
				Usage: "number of player pairs to simulate",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(cmd.String("server"), int(cmd.Int("pairs")))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(serverURL string, pairs int) error {
	firstDialedWhite := 0

	for i := 0; i < pairs; i++ {
		white, err := simulatePair(serverURL, i)
		if err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		if white == 0 {
			firstDialedWhite++
		}
	}

	fmt.Printf("\nSimulated %d pairs\n", pairs)
	fmt.Printf("First-dialed connection got white %d/%d times\n", firstDialedWhite, pairs)
	return nil
}

// simulatePair runs one full game: connect two players, verify the start
// events, play one move each, resign as black. It returns which dialed
// connection (0 or 1) was assigned white.
func simulatePair(serverURL string, pair int) (int, error) {
	a, err := dial(serverURL)
	if err != nil {
		return 0, err
	}
	defer a.close()

	b, err := dial(serverURL)
	if err != nil {
		return 0, err
	}
	defer b.close()

	startA, err := a.waitForStart()
	if err != nil {
		return 0, fmt.Errorf("first connection: %w", err)
	}
	startB, err := b.waitForStart()
	if err != nil {
		return 0, fmt.Errorf("second connection: %w", err)
	}

	if startA.Side == startB.Side {
		return 0, fmt.Errorf("both connections assigned %s", startA.Side)
	}
	if startA.Position != startB.Position {
		return 0, fmt.Errorf("participants see different positions")
	}

	white, black := a, b
	whiteIdx := 0
	if startA.Side == engine.Black {
		white, black = b, a
		whiteIdx = 1
	}

	// One move each, then black resigns.
	if err := white.move("e2", "e4"); err != nil {
		return 0, err
	}
	if _, err := white.waitFor(service.EventGameUpdate); err != nil {
		return 0, fmt.Errorf("white update: %w", err)
	}
	if _, err := black.waitFor(service.EventGameUpdate); err != nil {
		return 0, fmt.Errorf("black update: %w", err)
	}

	if err := black.move("e7", "e5"); err != nil {
		return 0, err
	}
	if _, err := white.waitFor(service.EventGameUpdate); err != nil {
		return 0, err
	}
	if _, err := black.waitFor(service.EventGameUpdate); err != nil {
		return 0, err
	}

	if err := black.send(service.EventResign, nil); err != nil {
		return 0, err
	}

	overRaw, err := white.waitFor(service.EventGameOver)
	if err != nil {
		return 0, fmt.Errorf("game over: %w", err)
	}
	var over service.GameOver
	if err := json.Unmarshal(overRaw, &over); err != nil {
		return 0, err
	}
	if _, err := black.waitFor(service.EventGameOver); err != nil {
		return 0, err
	}

	fmt.Printf("pair %d: %s (white was connection %d)\n", pair, over.Result, whiteIdx)
	return whiteIdx, nil
}

// player is one simulated connection. The server may coalesce several
// envelopes into a single frame separated by newlines, so inbound frames
// are split and buffered.
type player struct {
	conn    *websocket.Conn
	pending []wshub.Envelope
}

func dial(serverURL string) (*player, error) {
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	return &player{conn: conn}, nil
}

func (p *player) close() {
	p.conn.Close()
}

func (p *player) send(event string, payload any) error {
	env := wshub.Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Data = data
	}
	return p.conn.WriteJSON(env)
}

func (p *player) move(from, to string) error {
	return p.send(service.EventMove, engine.Move{From: from, To: to})
}

// next returns the next buffered envelope, reading another frame if needed.
func (p *player) next() (wshub.Envelope, error) {
	for len(p.pending) == 0 {
		p.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return wshub.Envelope{}, err
		}
		for _, part := range bytes.Split(raw, []byte{'\n'}) {
			if len(bytes.TrimSpace(part)) == 0 {
				continue
			}
			var env wshub.Envelope
			if err := json.Unmarshal(part, &env); err != nil {
				return wshub.Envelope{}, fmt.Errorf("bad envelope %q: %w", part, err)
			}
			p.pending = append(p.pending, env)
		}
	}

	env := p.pending[0]
	p.pending = p.pending[1:]
	return env, nil
}

// waitFor discards envelopes until one matches the wanted event.
func (p *player) waitFor(event string) (json.RawMessage, error) {
	for {
		env, err := p.next()
		if err != nil {
			return nil, err
		}
		if env.Event == event {
			return env.Data, nil
		}
	}
}

func (p *player) waitForStart() (*service.GameStart, error) {
	data, err := p.waitFor(service.EventGameStart)
	if err != nil {
		return nil, err
	}
	var start service.GameStart
	if err := json.Unmarshal(data, &start); err != nil {
		return nil, err
	}
	return &start, nil
}
