package frontend

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// Sound cues, served from /web/sounds.
const (
	SoundReveal  = "/web/sounds/reveal.wav"
	SoundMove    = "/web/sounds/move.wav"
	SoundVictory = "/web/sounds/victory.wav"
	SoundDefeat  = "/web/sounds/defeat.wav"
)

// GlobalClientState manages the connection and the last known state of the table.
type GlobalClientState struct {
	TableID  string
	Snapshot *game.Snapshot
	Result   *game.Result
	Error    string
	Conn     *websocket.Conn

	// LastMove is the last card movement, for highlighting.
	LastMove *game.Move

	SoundEnabled bool

	// Listeners for state updates
	Listeners map[string]func()
}

var State *GlobalClientState

func InitState() {
	if State == nil {
		klog.V(1).Infof("InitState: creating new state (was nil)")
		State = &GlobalClientState{
			Listeners:    make(map[string]func()),
			SoundEnabled: true,
		}
	} else {
		klog.V(1).Infof("InitState: state already exists")
	}
}

func (s *GlobalClientState) ToggleSound() {
	s.SoundEnabled = !s.SoundEnabled
	klog.Infof("ToggleSound: SoundEnabled is now %v", s.SoundEnabled)
	s.Notify()
}

func (s *GlobalClientState) PlaySound(url string) {
	if !s.SoundEnabled || app.IsServer {
		return
	}

	// Create a new Audio element for the sound effect
	audio := app.Window().Get("document").Call("createElement", "audio")
	audio.Set("src", url)

	// Play the sound (fire and forget)
	promise := audio.Call("play")
	if promise.Truthy() {
		promise.Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			klog.Errorf("PlaySound: Failed to play %s: %v", url, args[0])
			return nil
		}))
	}
}

func (s *GlobalClientState) Notify() {
	klog.V(2).Infof("GlobalClientState: Notifying %d listeners", len(s.Listeners))
	for _, l := range s.Listeners {
		if l != nil {
			l()
		}
	}
}

// ConnectStart opens a new connection and starts a new table in the given mode, answering question.
func (s *GlobalClientState) ConnectStart(mode game.Mode, question string) error {
	msg, err := game.NewWsMessage(game.MsgTypeStart, game.StartMessage{Mode: mode, Question: question})
	if err != nil {
		return fmt.Errorf("failed to create start message: %w", err)
	}
	return s.connect(msg)
}

// ConnectJoin opens a new connection attached to an existing table.
func (s *GlobalClientState) ConnectJoin(tableID string) error {
	msg, err := game.NewWsMessage(game.MsgTypeJoin, game.JoinMessage{TableID: tableID})
	if err != nil {
		return fmt.Errorf("failed to create join message: %w", err)
	}
	return s.connect(msg)
}

func (s *GlobalClientState) connect(first game.WsMessage) error {
	if s.Conn != nil {
		klog.Infof("connect: Closing existing connection")
		s.Conn.CloseNow()
	}
	s.TableID = ""
	s.Snapshot = nil
	s.Result = nil
	s.LastMove = nil
	s.Error = ""

	u := app.Window().URL()
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/ws", scheme, u.Host)
	klog.Infof("connect: Connecting to %s (%s)", wsURL, first.Type)

	// We use a context that lasts for the duration of the connection setup.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		klog.Errorf("connect: Dial failed: %v", err)
		return fmt.Errorf("dial failed: %w", err)
	}
	s.Conn = conn

	if err := wsjson.Write(ctx, conn, first); err != nil {
		klog.Errorf("connect: Failed to send %s: %v", first.Type, err)
		return fmt.Errorf("failed to send %s: %w", first.Type, err)
	}

	// Start reading loop in background
	go s.readLoop(conn)
	return nil
}

func (s *GlobalClientState) readLoop(conn *websocket.Conn) {
	ctx := context.Background()
	klog.Infof("readLoop: started")
	for {
		var msg game.WsMessage
		err := wsjson.Read(ctx, conn, &msg)
		if err != nil {
			klog.Errorf("readLoop: WS read error: %v", err)
			break
		}
		klog.V(2).Infof("readLoop: received message type: %s", msg.Type)
		s.handleMessage(msg)
	}
}

func (s *GlobalClientState) handleMessage(msg game.WsMessage) {
	p, err := msg.Parse()
	if err != nil {
		klog.Errorf("handleMessage: Failed to parse %s message: %v", msg.Type, err)
		return
	}

	switch m := p.(type) {
	case *game.StateMessage:
		s.TableID = m.TableID
		s.Snapshot = &m.Snapshot
		if m.Snapshot.Result == nil {
			s.Result = nil
		}
		s.Error = ""

	case *game.EventMessage:
		for _, e := range m.Events {
			switch e.Kind {
			case game.EventReveal:
				s.PlaySound(SoundReveal)
			case game.EventMove:
				s.LastMove = e.Move
				s.PlaySound(SoundMove)
			case game.EventPhase:
				if e.Phase == game.PhasePlaying {
					s.LastMove = nil
				}
			}
		}

	case *game.ResultMessage:
		s.Result = &m.Result
		if m.Result.Success {
			s.PlaySound(SoundVictory)
		} else {
			s.PlaySound(SoundDefeat)
		}

	case *game.ErrorMessage:
		klog.Warningf("handleMessage: server error: %s", m.Message)
		s.Error = m.Message

	default:
		klog.Warningf("handleMessage: unexpected message %s", msg.Type)
		return
	}
	s.Notify()
}

func (s *GlobalClientState) send(msgType game.MessageType, payload any) {
	if s.Conn == nil {
		return
	}
	msg, err := game.NewWsMessage(msgType, payload)
	if err != nil {
		klog.Errorf("send: Failed to create %s message: %v", msgType, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	if err := wsjson.Write(ctx, s.Conn, msg); err != nil {
		klog.Errorf("send: Failed to send %s message: %v", msgType, err)
	}
}

// SendStart replaces the table's game by a new one.
func (s *GlobalClientState) SendStart(mode game.Mode, question string) {
	s.send(game.MsgTypeStart, game.StartMessage{Mode: mode, Question: question})
}

// SendReveal asks to reveal the top card of group (manual mode).
func (s *GlobalClientState) SendReveal(group int) {
	s.send(game.MsgTypeReveal, game.RevealMessage{Group: group})
}

// SendPlace asks to place the revealed card, group being the group clicked (manual mode).
func (s *GlobalClientState) SendPlace(group int) {
	s.send(game.MsgTypePlace, game.PlaceMessage{Group: group})
}

func (s *GlobalClientState) SendSpeed(speed game.Speed) {
	s.send(game.MsgTypeSpeed, game.SpeedMessage{Speed: int(speed)})
}

// Leave tells the server we are done with the table, and closes the connection.
func (s *GlobalClientState) Leave() {
	if s.Conn == nil {
		return
	}
	s.send(game.MsgTypeLeave, nil)
	s.Conn.CloseNow()
	s.Conn = nil
	s.TableID = ""
	s.Snapshot = nil
	s.Result = nil
	s.LastMove = nil
}
