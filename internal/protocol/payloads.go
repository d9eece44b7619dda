package protocol

import "encoding/json"

// ========================================
// Client -> Server payloads
// ========================================

type JoinPayload struct {
	PlayerID       string `json:"playerId"`
	Event          string `json:"event"`
	DisplayName    string `json:"displayName,omitempty"`
	ReconnectToken string `json:"reconnectToken,omitempty"`
}

type LeavePayload struct {
	PlayerID string `json:"playerId"`
	Event    string `json:"event"`
}

type SetReadyPayload struct {
	PlayerID string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

type ActionPayload struct {
	PlayerID      string          `json:"playerId"`
	ActionType    string          `json:"actionType"`
	Data          json.RawMessage `json:"data"`
	ClientActionID string         `json:"clientActionId,omitempty"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ========================================
// Server -> Client payloads
// ========================================

// JoinRoomAckErrorCode is one of the ack's sanctioned failure codes.
type JoinRoomAckErrorCode string

const (
	ErrCodeRoomFull       JoinRoomAckErrorCode = "ROOM_FULL"
	ErrCodeInvalidToken   JoinRoomAckErrorCode = "INVALID_TOKEN"
	ErrCodeNicknameTaken  JoinRoomAckErrorCode = "NICKNAME_TAKEN"
)

type JoinRoomAckPayload struct {
	Success        bool                 `json:"success"`
	PlayerID       string               `json:"playerId,omitempty"`
	ReconnectToken string               `json:"reconnectToken,omitempty"`
	ErrorCode      JoinRoomAckErrorCode `json:"errorCode,omitempty"`
	ErrorMessage   string               `json:"errorMessage,omitempty"`
}

type LobbyPlayerInfo struct {
	PlayerID    string `json:"playerId"`
	Nickname    string `json:"nickname"`
	IsReady     bool   `json:"isReady"`
	IsConnected bool   `json:"isConnected"`
}

type LobbyStatePayload struct {
	Players  []LobbyPlayerInfo `json:"players"`
	CanStart bool              `json:"canStart"`
}

// ActionRejectedCode is one of the four pipeline rejection codes (spec §6.4).
type ActionRejectedCode string

const (
	CodeDuplicateAction ActionRejectedCode = "DUPLICATE_ACTION"
	CodePhaseMismatch   ActionRejectedCode = "PHASE_MISMATCH"
	CodeNotYourTurn     ActionRejectedCode = "NOT_YOUR_TURN"
	CodeInvalidAction   ActionRejectedCode = "INVALID_ACTION"
)

type ActionRejectedPayload struct {
	Reason         string             `json:"reason"`
	Code           ActionRejectedCode `json:"code"`
	ClientActionID string             `json:"clientActionId,omitempty"`
}

type BoardViewPayload struct {
	BoardView json.RawMessage `json:"boardView"`
}

type PlayerViewPayload struct {
	PlayerView json.RawMessage `json:"playerView"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

type StateUpdatePayload struct {
	State       json.RawMessage `json:"state"`
	TriggeredBy string          `json:"triggeredBy,omitempty"`
}
