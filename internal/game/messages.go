package game

import (
	"encoding/json"
	"fmt"
)

// Message type for WebSocket communication between client and server.
type MessageType string

const (
	MsgTypeStart  MessageType = "start"  // Client wants a new game (replacing the current one)
	MsgTypeJoin   MessageType = "join"   // Client wants to watch/play an existing table
	MsgTypeReveal MessageType = "reveal" // Client reveals the top card of a group (manual mode)
	MsgTypePlace  MessageType = "place"  // Client places the revealed card (manual mode)
	MsgTypeSpeed  MessageType = "speed"  // Client changes the auto speed
	MsgTypeLeave  MessageType = "leave"  // Client leaves the table
	MsgTypeState  MessageType = "state"  // Server sends a full snapshot
	MsgTypeEvent  MessageType = "event"  // Server sends the events of a committed step
	MsgTypeResult MessageType = "result" // Server sends the final result, exactly once per game
	MsgTypeError  MessageType = "error"  // Server sends an error message
)

// WsMessage represents a WebSocket message.
type WsMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewWsMessage creates a new WsMessage with a marshaled payload.
func NewWsMessage(msgType MessageType, payload interface{}) (WsMessage, error) {
	if payload == nil {
		return WsMessage{Type: msgType}, nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return WsMessage{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return WsMessage{
		Type:    msgType,
		Payload: payloadBytes,
	}, nil
}

// Parse unmarshals the message payload into one of the message types (StartMessage, StateMessage, etc.)
func (m *WsMessage) Parse() (any, error) {
	var target any
	switch m.Type {
	case MsgTypeStart:
		target = &StartMessage{}
	case MsgTypeJoin:
		target = &JoinMessage{}
	case MsgTypeReveal:
		target = &RevealMessage{}
	case MsgTypePlace:
		target = &PlaceMessage{}
	case MsgTypeSpeed:
		target = &SpeedMessage{}
	case MsgTypeLeave:
		target = &LeaveMessage{}
	case MsgTypeState:
		target = &StateMessage{}
	case MsgTypeEvent:
		target = &EventMessage{}
	case MsgTypeResult:
		target = &ResultMessage{}
	case MsgTypeError:
		target = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("unknown message type: %s", m.Type)
	}

	if len(m.Payload) == 0 {
		return target, nil
	}

	err := json.Unmarshal(m.Payload, target)
	return target, err
}

// StartMessage is the payload for MsgTypeStart
type StartMessage struct {
	Mode     Mode   `json:"mode"`
	Question string `json:"question,omitempty"`
}

// JoinMessage is the payload for MsgTypeJoin
type JoinMessage struct {
	TableID string `json:"table_id"`
}

// RevealMessage is the payload for MsgTypeReveal
type RevealMessage struct {
	Group int `json:"group"`
}

// PlaceMessage is the payload for MsgTypePlace. Group is the clicked group (or OrderedArea);
// the destination itself is decided by the rules.
type PlaceMessage struct {
	Group int `json:"group"`
}

// SpeedMessage is the payload for MsgTypeSpeed
type SpeedMessage struct {
	Speed int `json:"speed"`
}

// LeaveMessage: empty.
type LeaveMessage struct{}

// StateMessage is the payload for MsgTypeState
type StateMessage struct {
	TableID  string   `json:"table_id"`
	Snapshot Snapshot `json:"snapshot"`
}

// EventMessage is the payload for MsgTypeEvent
type EventMessage struct {
	Events []Event `json:"events"`
}

// ResultMessage is the payload for MsgTypeResult
type ResultMessage struct {
	Result Result `json:"result"`
}

// ErrorMessage is the payload for MsgTypeError
type ErrorMessage struct {
	Message string `json:"message"`
}
