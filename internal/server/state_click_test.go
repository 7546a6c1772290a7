package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"testing/synctest"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/janpfeifer/GoOracle/internal/table"
)

// pipeListener serves HTTP connections over net.Pipe
type pipeListener struct {
	ch   chan net.Conn
	done chan struct{}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *pipeListener) Addr() net.Addr { return &net.TCPAddr{} }

// pipeServer serves s.HandleWS over net.Pipe connections, and returns a dial function.
func pipeServer(t *testing.T, s *ServerState) func(ctx context.Context) *websocket.Conn {
	srv := &http.Server{Handler: http.HandlerFunc(s.HandleWS)}
	listener := &pipeListener{ch: make(chan net.Conn, 10), done: make(chan struct{})}
	go srv.Serve(listener)
	t.Cleanup(func() {
		srv.Close()
		listener.Close()
	})

	return func(ctx context.Context) *websocket.Conn {
		opts := &websocket.DialOptions{
			HTTPClient: &http.Client{
				Transport: &http.Transport{
					DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
						cli, srv := net.Pipe()
						listener.ch <- srv
						return cli, nil
					},
				},
			},
		}
		conn, _, err := websocket.Dial(ctx, "http://localhost/ws", opts)
		if err != nil {
			t.Fatalf("Dial error: %v", err)
		}
		return conn
	}
}

func TestAutoGameStreamsToTheEnd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		s := NewServerState(table.Options{Strict: true})
		defer s.Tables.CloseAll()
		dial := pipeServer(t, s)

		start := time.Now()
		tbl, _, err := s.Tables.Create(table.Start{Mode: game.ModeAuto}, game.NewDeck())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		conn := dial(ctx)
		defer conn.CloseNow()
		send(t, ctx, conn, game.MsgTypeJoin, game.JoinMessage{TableID: tbl.ID})

		// Auto steps are paced by the fake clock: the whole game plays out while we read.
		moves, results := 0, 0
		var result game.Result
		for results == 0 {
			var msg game.WsMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				t.Fatalf("Read: %v", err)
			}
			p, err := msg.Parse()
			if err != nil {
				t.Fatalf("Parse %s: %v", msg.Type, err)
			}
			switch m := p.(type) {
			case *game.EventMessage:
				for _, e := range m.Events {
					if e.Kind == game.EventMove {
						moves++
						if e.Move.Step != moves {
							t.Fatalf("Move %d reported as step %d", moves, e.Move.Step)
						}
					}
				}
			case *game.ResultMessage:
				results++
				result = m.Result
			case *game.ErrorMessage:
				t.Fatalf("Unexpected error: %s", m.Message)
			}
		}
		elapsed := time.Since(start)

		if !result.Success || result.Steps != game.DeckSize || moves != game.DeckSize {
			t.Errorf("Expected a win in %d moves, got %d moves and %+v", game.DeckSize, moves, result)
		}
		timings := game.TimingsFor(game.SpeedNormal)
		if want := game.DeckSize*timings.TurnPeriod() + timings.Step; elapsed != want {
			t.Errorf("Game took %s, expected %s", elapsed, want)
		}

		// Joining does not make the connection the owner: the table survives it.
		send(t, ctx, conn, game.MsgTypeLeave, nil)
		synctest.Wait()
		if _, err := s.Tables.Get(tbl.ID); err != nil {
			t.Errorf("Table should survive a watcher leaving: %v", err)
		}
	})
}

func TestManualClicks(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s := NewServerState(table.Options{Strict: true, NewRNG: func() game.RNG { return game.NewRNG(9) }})
		defer s.Tables.CloseAll()
		dial := pipeServer(t, s)

		conn := dial(ctx)
		defer conn.CloseNow()
		send(t, ctx, conn, game.MsgTypeStart, game.StartMessage{Mode: game.ModeManual})
		snap := readUntil(t, ctx, conn, game.MsgTypeState).(*game.StateMessage).Snapshot

		// Clicking a group that is not allowed changes nothing: no update is sent.
		send(t, ctx, conn, game.MsgTypeReveal, game.RevealMessage{Group: (snap.Manual.Allowed[0] + 1) % game.NumGroups})
		synctest.Wait()

		var result *game.Result
		for i := 0; result == nil; i++ {
			if i > 4*game.DeckSize {
				t.Fatalf("Manual game did not end")
			}
			m := snap.Manual
			if m.WaitingForPlacement {
				send(t, ctx, conn, game.MsgTypePlace, game.PlaceMessage{Group: m.Allowed[len(m.Allowed)-1]})
			} else {
				send(t, ctx, conn, game.MsgTypeReveal, game.RevealMessage{Group: m.Allowed[0]})
			}
			for {
				var msg game.WsMessage
				if err := wsjson.Read(ctx, conn, &msg); err != nil {
					t.Fatalf("Read: %v", err)
				}
				p, _ := msg.Parse()
				if st, ok := p.(*game.StateMessage); ok {
					if st.Snapshot.Phase == game.PhaseFinished {
						r := *st.Snapshot.Result
						result = &r
					}
					snap = st.Snapshot
					break
				}
				if e, ok := p.(*game.ErrorMessage); ok {
					t.Fatalf("Unexpected error: %s", e.Message)
				}
			}
		}
		if result.Steps != snap.Step {
			t.Errorf("Result steps %d differ from the board step %d", result.Steps, snap.Step)
		}

		// The owner disconnecting removes its table.
		conn.CloseNow()
		synctest.Wait()
		if s.Tables.Len() != 0 {
			t.Errorf("Table should be removed when its owner disconnects")
		}
	})
}
