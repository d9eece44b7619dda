package session

import "encoding/json"

// MaxLogEntries bounds GameSessionState.Log (invariant L1).
const MaxLogEntries = 50

// PlayerSessionState is one seat's session-local identity and lobby flags.
type PlayerSessionState struct {
	PlayerID       string `json:"player_id"`
	Nickname       string `json:"nickname"`
	IsConnected    bool   `json:"is_connected"`
	IsReady        bool   `json:"is_ready"`
	ReconnectToken string `json:"reconnect_token"`
}

// TurnState describes whose turn it is and how far into it they are. Nil in
// the Lobby phase.
type TurnState struct {
	Round               int      `json:"round"`
	TurnIndex           int      `json:"turn_index"`
	ActivePlayerID      string   `json:"active_player_id"`
	Step                TurnStep `json:"step"`
	ActionCountThisTurn int      `json:"action_count_this_turn"`
}

func (t *TurnState) clone() *TurnState {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// GameState is opaque to the session core: the rules pack owns the shape of
// Data and is the only thing that (de)serializes it.
type GameState struct {
	GameID         string          `json:"game_id"`
	Turn           int             `json:"turn"`
	ActivePlayerID string          `json:"active_player_id"`
	Data           json.RawMessage `json:"data"`
}

func (g *GameState) clone() *GameState {
	if g == nil {
		return nil
	}
	cp := *g
	if g.Data != nil {
		cp.Data = append(json.RawMessage(nil), g.Data...)
	}
	return &cp
}

// LogEntry is one bounded audit-log record.
type LogEntry struct {
	EventType   string `json:"event_type"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}

// GameSessionState is the authoritative, versioned snapshot of one room.
// Every field replacement is expressed as a pure function returning a new
// value (invariant P1); Version only advances through AddLogEntry, which is
// the sole sanctioned mutation primitive (invariant V1).
type GameSessionState struct {
	SessionID   string                        `json:"session_id"`
	Phase       Phase                         `json:"phase"`
	Players     map[string]PlayerSessionState `json:"players"`
	PlayerOrder []string                      `json:"player_order"`
	TurnState   *TurnState                    `json:"turn_state"`
	GameState   *GameState                    `json:"game_state"`
	Log         []LogEntry                    `json:"log"`
	Version     int64                         `json:"version"`
}

// New returns a fresh Lobby-phase session at version 0.
func New(sessionID string) GameSessionState {
	return GameSessionState{
		SessionID: sessionID,
		Phase:     PhaseLobby,
		Players:   make(map[string]PlayerSessionState),
		Version:   0,
	}
}

// Clone deep-copies the state so callers can build a modified value without
// aliasing the receiver's maps/slices (invariant P1).
func (s GameSessionState) Clone() GameSessionState {
	cp := s
	cp.Players = make(map[string]PlayerSessionState, len(s.Players))
	for id, p := range s.Players {
		cp.Players[id] = p
	}
	cp.PlayerOrder = append([]string(nil), s.PlayerOrder...)
	cp.TurnState = s.TurnState.clone()
	cp.GameState = s.GameState.clone()
	cp.Log = append([]LogEntry(nil), s.Log...)
	return cp
}

// WithPhase returns a copy with Phase replaced. Does not bump Version; pair
// with AddLogEntry to record the transition.
func (s GameSessionState) WithPhase(p Phase) GameSessionState {
	cp := s.Clone()
	cp.Phase = p
	return cp
}

// WithPlayers returns a copy with Players and PlayerOrder replaced.
func (s GameSessionState) WithPlayers(players map[string]PlayerSessionState, order []string) GameSessionState {
	cp := s.Clone()
	cp.Players = make(map[string]PlayerSessionState, len(players))
	for id, p := range players {
		cp.Players[id] = p
	}
	cp.PlayerOrder = append([]string(nil), order...)
	return cp
}

// WithTurnState returns a copy with TurnState replaced.
func (s GameSessionState) WithTurnState(t *TurnState) GameSessionState {
	cp := s.Clone()
	cp.TurnState = t.clone()
	return cp
}

// WithGameState returns a copy with GameState replaced.
func (s GameSessionState) WithGameState(g *GameState) GameSessionState {
	cp := s.Clone()
	cp.GameState = g.clone()
	return cp
}

// AddLogEntry appends a bounded log entry and bumps Version by exactly one.
// This is the only function in the package that advances Version — every
// semantic mutation in the action pipeline routes through here so V1 and L1
// hold together by construction.
func (s GameSessionState) AddLogEntry(eventType, description string, timestampMillis int64) GameSessionState {
	cp := s.Clone()
	cp.Log = append(cp.Log, LogEntry{
		EventType:   eventType,
		Description: description,
		Timestamp:   timestampMillis,
	})
	if len(cp.Log) > MaxLogEntries {
		cp.Log = cp.Log[len(cp.Log)-MaxLogEntries:]
	}
	cp.Version = s.Version + 1
	return cp
}

// HasPlayer reports whether id is a seat in this session.
func (s GameSessionState) HasPlayer(id string) bool {
	_, ok := s.Players[id]
	return ok
}

// ActivePlayerID returns the active player, or "" in the Lobby phase.
func (s GameSessionState) ActivePlayerID() string {
	if s.TurnState == nil {
		return ""
	}
	return s.TurnState.ActivePlayerID
}
