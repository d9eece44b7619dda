package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardgo/internal/session"
)

func TestMemoryLoadMissingSessionReturnsNotFound(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Load("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySaveThenLoadRoundTrips(t *testing.T) {
	m := NewMemory()
	s := session.New("sess-1").AddLogEntry("JOIN", "p1 joined", 100)

	require.NoError(t, m.Save(s))

	loaded, ok, err := m.Load("sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s, loaded)
}

func TestMemorySaveUpsertsOnConflict(t *testing.T) {
	m := NewMemory()
	s := session.New("sess-1")
	require.NoError(t, m.Save(s))

	updated := s.AddLogEntry("JOIN", "p1 joined", 100)
	require.NoError(t, m.Save(updated))

	loaded, ok, err := m.Load("sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, loaded.Version)
}

func TestMemoryDeleteRemovesSession(t *testing.T) {
	m := NewMemory()
	s := session.New("sess-1")
	require.NoError(t, m.Save(s))
	require.NoError(t, m.Delete("sess-1"))

	_, ok, err := m.Load("sess-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
