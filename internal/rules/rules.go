// Package rules defines the pluggable game-logic contract (spec §4.4).
// Implementations must be pure functions: no retained mutable state, no
// observation of wall-clock time. This mirrors the teacher's
// services.LobbyService interface-over-implementation pattern
// (internal/services/lobby_service.go), generalized from a CRUD lobby
// service to a pure state-transition contract.
package rules

import "boardgo/internal/session"

// AllowedAction describes one action a player may currently submit.
type AllowedAction struct {
	ActionType string                 `json:"actionType"`
	Label      string                 `json:"label"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// BoardView is the publicly broadcast view of a session. Implementations
// build this with json.RawMessage-friendly concrete types of their own
// choosing; GameServer only ever treats it as "marshal and wrap in an
// envelope".
type BoardView struct {
	Phase        string          `json:"phase"`
	TurnState    interface{}     `json:"turnState"`
	Version      int64           `json:"version"`
	RecentLog    []session.LogEntry `json:"recentLog"`
	Data         interface{}     `json:"data,omitempty"`
}

// PlayerView is the per-player private view. Never broadcast; always sent
// to exactly one seat.
type PlayerView struct {
	Phase          string          `json:"phase"`
	PlayerID       string          `json:"playerId"`
	TurnState      interface{}     `json:"turnState"`
	AllowedActions []AllowedAction `json:"allowedActions"`
	Version        int64           `json:"version"`
	Data           interface{}     `json:"data,omitempty"`
}

// GameEndResult is the outcome of CheckGameEnd.
type GameEndResult struct {
	Ended     bool
	WinnerIDs []string
}

// GamePackRules is the pure contract a rules pack implements (spec §4.4).
// Every method must be a pure function of its arguments: no internal state,
// no clocks, no randomness other than what is already recorded in the
// session (e.g. a deck order decided at CreateInitialGameState time).
type GamePackRules interface {
	// PackID identifies this rules pack, e.g. for selection at game start.
	PackID() string

	// CreateInitialGameState transitions session from Lobby to InGame,
	// populating GameState and a fresh TurnState, and bumps Version.
	CreateInitialGameState(s session.GameSessionState) session.GameSessionState

	// GetAllowedActions returns the actions playerId may currently submit.
	// Empty outside InGame or when it is not playerId's turn.
	GetAllowedActions(s session.GameSessionState, playerID string) []AllowedAction

	// ApplyAction applies action to the session, returning the new state.
	// Callers guarantee action is present in GetAllowedActions' result.
	ApplyAction(s session.GameSessionState, playerID, actionType string, data []byte) (session.GameSessionState, error)

	// CheckGameEnd reports whether the game has ended and, if so, the
	// winning playerIds.
	CheckGameEnd(s session.GameSessionState) GameEndResult

	// BuildBoardView renders the public, broadcast-safe view (invariant H1:
	// must not carry any player's private data).
	BuildBoardView(s session.GameSessionState) BoardView

	// BuildPlayerView renders playerId's private view: their own data plus,
	// at most, data already visible on the board view.
	BuildPlayerView(s session.GameSessionState, playerID string) PlayerView
}
