package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/janpfeifer/GoOracle/internal/table"
	"k8s.io/klog/v2"
)

// writeTimeout bounds every websocket write.
const writeTimeout = 5 * time.Second

// ServerState holds the tables and the connections playing on them.
type ServerState struct {
	Address string

	Tables *table.Registry

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewServerState creates a server state whose tables are configured with opts.
func NewServerState(opts table.Options) *ServerState {
	return &ServerState{
		Tables:  table.NewRegistry(opts),
		clients: make(map[*client]bool),
	}
}

// client is one websocket connection, attached to one table at a time.
type client struct {
	conn  *websocket.Conn
	table *table.Table
	owned bool // The table was created by this connection, and is removed when it leaves.

	cancelSub func()
	done      chan struct{}
}

// NumClients returns the number of connected websockets.
func (s *ServerState) NumClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleWS serves one websocket connection. The first message must be a start (creating a new
// table) or a join (attaching to an existing one).
func (s *ServerState) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow cross-origin for development
	})
	if err != nil {
		klog.Errorf("Websocket accept error: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	defer func() {
		s.detach(c)
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()

	var first game.WsMessage
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		klog.V(1).Infof("Websocket closed before the first message: %v", err)
		return
	}
	if err := s.attachFirst(ctx, c, first); err != nil {
		sendError(ctx, conn, err.Error())
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}

	for {
		var msg game.WsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			klog.V(1).Infof("Websocket read error (table %s): %v", c.table.ID, err)
			return
		}
		if msg.Type == game.MsgTypeLeave {
			klog.V(1).Infof("Client left table %s", c.table.ID)
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if err := s.handleMessage(ctx, c, msg); err != nil {
			klog.Warningf("Table %s: %v", c.table.ID, err)
			sendError(ctx, conn, err.Error())
		}
	}
}

func (s *ServerState) attachFirst(ctx context.Context, c *client, msg game.WsMessage) error {
	p, err := msg.Parse()
	if err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	switch m := p.(type) {
	case *game.StartMessage:
		mode, err := game.ParseMode(string(m.Mode))
		if err != nil {
			return err
		}
		t, _, err := s.Tables.Create(table.Start{Mode: mode, Question: m.Question}, nil)
		if err != nil {
			return err
		}
		s.attach(ctx, c, t, true)
	case *game.JoinMessage:
		t, err := s.Tables.Get(m.TableID)
		if err != nil {
			return fmt.Errorf("table %q: %w", m.TableID, err)
		}
		s.attach(ctx, c, t, false)
	default:
		return fmt.Errorf("expected %s or %s as first message, got %s", game.MsgTypeStart, game.MsgTypeJoin, msg.Type)
	}
	return nil
}

// attach subscribes the client to the table, sends the current state and streams updates.
func (s *ServerState) attach(ctx context.Context, c *client, t *table.Table, owned bool) {
	updates, cancel := t.Subscribe()
	c.table = t
	c.owned = owned
	c.cancelSub = cancel
	c.done = make(chan struct{})

	// Subscribing before taking the snapshot guarantees no update is missed.
	writeMessage(ctx, c.conn, game.MsgTypeState, game.StateMessage{TableID: t.ID, Snapshot: t.Snapshot()})
	go s.streamUpdates(ctx, c, updates, c.done)
	klog.Infof("Client attached to table %s (owner=%t)", t.ID, owned)
}

// detach stops streaming and, if the client owns the table, closes it.
func (s *ServerState) detach(c *client) {
	if c.table == nil {
		return
	}
	c.cancelSub()
	<-c.done
	if c.owned {
		if err := s.Tables.Remove(c.table.ID); err != nil && !errors.Is(err, table.ErrNotFound) {
			klog.Errorf("Failed to remove table %s: %v", c.table.ID, err)
		}
	}
	c.table = nil
}

func (s *ServerState) streamUpdates(ctx context.Context, c *client, updates <-chan table.Update, done chan struct{}) {
	defer close(done)
	for u := range updates {
		if len(u.Events) > 0 {
			writeMessage(ctx, c.conn, game.MsgTypeEvent, game.EventMessage{Events: u.Events})
		}
		writeMessage(ctx, c.conn, game.MsgTypeState, game.StateMessage{TableID: u.Snapshot.ID, Snapshot: u.Snapshot})
		if u.Result != nil {
			writeMessage(ctx, c.conn, game.MsgTypeResult, game.ResultMessage{Result: *u.Result})
		}
	}
}

// handleMessage applies one command from the client to its table.
func (s *ServerState) handleMessage(ctx context.Context, c *client, msg game.WsMessage) error {
	p, err := msg.Parse()
	if err != nil {
		return fmt.Errorf("invalid %s message: %w", msg.Type, err)
	}
	var cmd table.Command
	switch m := p.(type) {
	case *game.StartMessage:
		mode, err := game.ParseMode(string(m.Mode))
		if err != nil {
			return err
		}
		cmd = table.Start{Mode: mode, Question: m.Question}
	case *game.RevealMessage:
		cmd = table.Reveal{Group: m.Group}
	case *game.PlaceMessage:
		cmd = table.Place{Group: m.Group}
	case *game.SpeedMessage:
		cmd = table.SetSpeed{Speed: m.Speed}
	case *game.JoinMessage:
		t, err := s.Tables.Get(m.TableID)
		if err != nil {
			return fmt.Errorf("table %q: %w", m.TableID, err)
		}
		s.detach(c)
		s.attach(ctx, c, t, false)
		return nil
	default:
		return fmt.Errorf("unexpected message %s", msg.Type)
	}
	if _, err := c.table.Dispatch(cmd); err != nil {
		return err
	}
	return nil
}

// HandleTestGame creates an auto game dealt from an unshuffled deck, and redirects to it.
func (s *ServerState) HandleTestGame(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.Tables.Create(table.Start{Mode: game.ModeAuto}, game.NewDeck())
	if err != nil {
		klog.Errorf("HandleTestGame: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	klog.Infof("HandleTestGame: created table %s", t.ID)
	http.Redirect(w, r, "/table/"+t.ID, http.StatusSeeOther)
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msgType game.MessageType, payload any) {
	msg, err := game.NewWsMessage(msgType, payload)
	if err != nil {
		klog.Errorf("Failed to create %s message: %v", msgType, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		klog.V(1).Infof("Failed to write %s message: %v", msgType, err)
	}
}

func sendError(ctx context.Context, conn *websocket.Conn, message string) {
	writeMessage(ctx, conn, game.MsgTypeError, game.ErrorMessage{Message: message})
}
