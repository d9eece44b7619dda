// Package badgerstore is a persistence.Store backed by
// github.com/dgraph-io/badger/v4, the embedded KV engine used as the
// domain-stack persistence dependency (grounded on
// marmos91-dittofs/pkg/metadata/store/badger/server.go and encoding.go —
// the only example repo with an embedded KV store). Keys are namespaced
// with a "s:" prefix per dittofs's key-namespacing convention, so this
// store can share a single badger.DB with other namespaces if the embedder
// chooses to.
package badgerstore

import (
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"boardgo/internal/session"
)

const sessionKeyPrefix = "s:"

func sessionKey(sessionID string) []byte {
	return []byte(sessionKeyPrefix + sessionID)
}

// Store is a persistence.Store backed by an on-disk badger.DB.
type Store struct {
	path string
	db   *badgerdb.DB
}

// New constructs a Store rooted at path. Call Open before first use.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Open() error {
	opts := badgerdb.DefaultOptions(s.path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return fmt.Errorf("badgerstore: open %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(state session.GameSessionState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("badgerstore: encode session %s: %w", state.SessionID, err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(sessionKey(state.SessionID), encoded)
	})
}

func (s *Store) Load(sessionID string) (session.GameSessionState, bool, error) {
	var state session.GameSessionState
	found := false

	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		return session.GameSessionState{}, false, fmt.Errorf("badgerstore: load session %s: %w", sessionID, err)
	}
	return state, found, nil
}

func (s *Store) Delete(sessionID string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(sessionKey(sessionID))
	})
}
