package sessionmanager

import (
	"sync"

	"github.com/google/uuid"
)

// seat is the manager's internal record for a single playerId. It is never
// exposed directly; callers only ever see snapshots (LobbyPlayer) or act
// through the manager's methods.
type seat struct {
	playerID       string
	nickname       string
	sink           MessageSink
	isReady        bool
	isConnected    bool
	reconnectToken string
}

// LobbyPlayer is a point-in-time snapshot of one seat, as surfaced by
// BuildLobbyState.
type LobbyPlayer struct {
	PlayerID    string
	Nickname    string
	IsReady     bool
	IsConnected bool
}

// LobbyState is the full snapshot returned by BuildLobbyState.
type LobbyState struct {
	Players  []LobbyPlayer
	CanStart bool
}

// Manager is the seat registry (spec §4.3). It is guarded by a single mutex;
// the session thread is its only driver (see gameserver), so contention is
// never a concern in practice — the lock exists to make that discipline
// explicit rather than to parallelize access.
type Manager struct {
	mu sync.Mutex

	seats []string // insertion order of playerIds, preserved for playerOrder (§4.7.6 step 2)
	byID  map[string]*seat

	// tokens maps playerId -> reconnect token. Preserved across unregister
	// per the reference behavior described in spec §4.3.
	tokens     map[string]string
	tokensByID map[string]string // token -> playerId, the reverse index
}

// New constructs an empty seat registry.
func New() *Manager {
	return &Manager{
		byID:       make(map[string]*seat),
		tokens:     make(map[string]string),
		tokensByID: make(map[string]string),
	}
}

// Register replaces any existing seat for playerId, marks it connected and
// not-ready. It does not mint a reconnect token — GetReconnectToken does
// that lazily on first call. Closing any prior sink is the caller's
// responsibility.
func (m *Manager) Register(playerID, nickname string, sink MessageSink) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[playerID]; !ok {
		m.seats = append(m.seats, playerID)
	}
	m.byID[playerID] = &seat{
		playerID:       playerID,
		nickname:       nickname,
		sink:           sink,
		isReady:        false,
		isConnected:    true,
		reconnectToken: m.tokens[playerID],
	}
}

// Unregister drops the seat and its ready flag. The reconnect token forward
// mapping (playerId -> token) is intentionally preserved.
func (m *Manager) Unregister(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.byID, playerID)
	for i, id := range m.seats {
		if id == playerID {
			m.seats = append(m.seats[:i], m.seats[i+1:]...)
			break
		}
	}
}

// MarkDisconnected sets isConnected=false and clears the sink, preserving
// everything else. No-op for an unknown playerId.
func (m *Manager) MarkDisconnected(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[playerID]
	if !ok {
		return
	}
	s.isConnected = false
	s.sink = nil
}

// Reconnect sets isConnected=true and attaches newSink. No-op for an unknown
// playerId.
func (m *Manager) Reconnect(playerID string, newSink MessageSink) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[playerID]
	if !ok {
		return
	}
	s.isConnected = true
	s.sink = newSink
}

// Send delivers frame to playerID's sink. No-op unless the seat is
// connected.
func (m *Manager) Send(playerID string, frame []byte) {
	m.mu.Lock()
	s, ok := m.byID[playerID]
	m.mu.Unlock()

	if !ok || !s.isConnected || s.sink == nil {
		return
	}
	s.sink.Send(frame)
}

// Broadcast delivers frame to every connected seat except excludePlayerID
// (pass "" to exclude nobody).
func (m *Manager) Broadcast(frame []byte, excludePlayerID string) {
	m.mu.Lock()
	recipients := make([]MessageSink, 0, len(m.seats))
	for _, id := range m.seats {
		if id == excludePlayerID {
			continue
		}
		s := m.byID[id]
		if s != nil && s.isConnected && s.sink != nil {
			recipients = append(recipients, s.sink)
		}
	}
	m.mu.Unlock()

	for _, sink := range recipients {
		sink.Send(frame)
	}
}

// SetReady sets the ready flag for playerID. No-op for an unknown playerId.
func (m *Manager) SetReady(playerID string, ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[playerID]; ok {
		s.isReady = ready
	}
}

// IsReady reports the ready flag for playerID (false if unknown).
func (m *Manager) IsReady(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[playerID]
	return ok && s.isReady
}

// IsConnected reports whether playerID currently has a live sink.
func (m *Manager) IsConnected(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[playerID]
	return ok && s.isConnected
}

// HasSeat reports whether playerID has ever been registered and not since
// unregistered.
func (m *Manager) HasSeat(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.byID[playerID]
	return ok
}

// GetReconnectToken returns the existing token for playerID, minting a
// uniformly random UUID v4 token on first call.
func (m *Manager) GetReconnectToken(playerID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tok, ok := m.tokens[playerID]; ok {
		return tok
	}
	tok := uuid.NewString()
	m.tokens[playerID] = tok
	m.tokensByID[tok] = playerID

	if s, ok := m.byID[playerID]; ok {
		s.reconnectToken = tok
	}
	return tok
}

// FindPlayerByReconnectToken resolves a token back to its owning playerId.
// Returns "", false if the token is unknown.
func (m *Manager) FindPlayerByReconnectToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.tokensByID[token]
	return id, ok
}

// IsReadyToStart is true iff at least one connected seat exists and every
// connected seat has isReady == true.
func (m *Manager) IsReadyToStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	anyConnected := false
	for _, id := range m.seats {
		s := m.byID[id]
		if s == nil || !s.isConnected {
			continue
		}
		anyConnected = true
		if !s.isReady {
			return false
		}
	}
	return anyConnected
}

// ConnectedPlayerOrder returns the playerIds of currently connected seats in
// registration order, for use as GameSessionState.PlayerOrder at game start
// (spec §4.7.6 step 2).
func (m *Manager) ConnectedPlayerOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := make([]string, 0, len(m.seats))
	for _, id := range m.seats {
		if s := m.byID[id]; s != nil && s.isConnected {
			order = append(order, id)
		}
	}
	return order
}

// Nickname returns the registered nickname for playerID, or "" if unknown.
func (m *Manager) Nickname(playerID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[playerID]; ok {
		return s.nickname
	}
	return ""
}

// BuildLobbyState snapshots every seat, connected or not.
func (m *Manager) BuildLobbyState() LobbyState {
	m.mu.Lock()
	players := make([]LobbyPlayer, 0, len(m.seats))
	for _, id := range m.seats {
		s := m.byID[id]
		if s == nil {
			continue
		}
		players = append(players, LobbyPlayer{
			PlayerID:    s.playerID,
			Nickname:    s.nickname,
			IsReady:     s.isReady,
			IsConnected: s.isConnected,
		})
	}
	m.mu.Unlock()

	return LobbyState{
		Players:  players,
		CanStart: m.IsReadyToStart(),
	}
}
