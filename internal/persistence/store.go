// Package persistence defines the optional key/value persistence port (spec
// §4.6) and an in-memory reference implementation. A nil Store is a valid
// collaborator everywhere this package is consumed: callers must treat a
// missing store as "skip saves silently", never as an error.
package persistence

import (
	"encoding/json"
	"fmt"
	"sync"

	"boardgo/internal/session"
)

// Store is the persistence port: open/close lifecycle plus CRUD on
// GameSessionState keyed by sessionId. Save errors are the caller's to
// swallow (spec §4.6); Store implementations return them so the caller can
// choose to log at Warn.
type Store interface {
	Open() error
	Close() error
	Save(s session.GameSessionState) error
	Load(sessionID string) (session.GameSessionState, bool, error)
	Delete(sessionID string) error
}

// Memory is an in-process Store, used by default and in tests. It is safe
// for concurrent use; gameserver calls Save from a fresh goroutine per
// snapshot, outside the session thread.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Open() error  { return nil }
func (m *Memory) Close() error { return nil }

func (m *Memory) Save(s session.GameSessionState) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("persistence: encode session %s: %w", s.SessionID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.SessionID] = encoded
	return nil
}

func (m *Memory) Load(sessionID string) (session.GameSessionState, bool, error) {
	m.mu.Lock()
	raw, ok := m.data[sessionID]
	m.mu.Unlock()
	if !ok {
		return session.GameSessionState{}, false, nil
	}

	var s session.GameSessionState
	if err := json.Unmarshal(raw, &s); err != nil {
		return session.GameSessionState{}, false, fmt.Errorf("persistence: decode session %s: %w", sessionID, err)
	}
	return s, true, nil
}

func (m *Memory) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}
