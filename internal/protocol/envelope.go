// Package protocol defines the wire envelope and per-type payload shapes
// exchanged between board and node over the /ws endpoint (spec §6).
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is one of the closed set of wire type strings (spec §6.2).
type MessageType string

const (
	TypeAction         MessageType = "ACTION"
	TypeStateUpdate    MessageType = "STATE_UPDATE"
	TypeJoin           MessageType = "JOIN"
	TypeLeave          MessageType = "LEAVE"
	TypeError          MessageType = "ERROR"
	TypeJoinRoomAck    MessageType = "JOIN_ROOM_ACK"
	TypeLobbyState     MessageType = "LOBBY_STATE"
	TypeSetReady       MessageType = "SET_READY"
	TypePing           MessageType = "PING"
	TypePong           MessageType = "PONG"
	TypePlayerView     MessageType = "PLAYER_VIEW"
	TypeBoardView      MessageType = "BOARD_VIEW"
	TypeActionRejected MessageType = "ACTION_REJECTED"
	TypeStartGame      MessageType = "START_GAME"
)

var knownTypes = map[MessageType]struct{}{
	TypeAction: {}, TypeStateUpdate: {}, TypeJoin: {}, TypeLeave: {},
	TypeError: {}, TypeJoinRoomAck: {}, TypeLobbyState: {}, TypeSetReady: {},
	TypePing: {}, TypePong: {}, TypePlayerView: {}, TypeBoardView: {},
	TypeActionRejected: {}, TypeStartGame: {},
}

// ErrInvalidFrame is returned by Decode when a frame's type is unknown or its
// shape cannot be parsed. Per spec §4.1, callers respond with ERROR and keep
// the connection open — they must never treat this as a fatal transport
// error.
type ErrInvalidFrame struct {
	Reason string
}

func (e *ErrInvalidFrame) Error() string {
	return fmt.Sprintf("protocol: invalid frame: %s", e.Reason)
}

// Envelope is the wire wrapper for every message: {type, payload, timestamp}.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// NewEnvelope marshals payload and stamps the current time, per spec §4.1
// ("every outbound envelope stamps timestamp with current milliseconds since
// epoch").
func NewEnvelope(msgType MessageType, payload interface{}) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal payload for %s: %w", msgType, err)
	}
	return &Envelope{
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Decode parses raw bytes into an Envelope, rejecting unknown types.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ErrInvalidFrame{Reason: err.Error()}
	}
	if _, ok := knownTypes[env.Type]; !ok {
		return nil, &ErrInvalidFrame{Reason: fmt.Sprintf("unknown type %q", env.Type)}
	}
	return &env, nil
}

// Encode marshals the envelope back to wire bytes.
func Encode(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// ParsePayload unmarshals the envelope's payload into v.
func (e *Envelope) ParsePayload(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return &ErrInvalidFrame{Reason: err.Error()}
	}
	return nil
}
