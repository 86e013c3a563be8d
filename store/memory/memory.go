// Package memory provides a process-local HistoryStore.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/sentinel-zero/sentinel/store"
)

// MemoryHistoryStore keeps turns in a map guarded by a mutex.
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*store.Turn
}

// NewMemoryHistoryStore creates an empty store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{sessions: make(map[string][]*store.Turn)}
}

// Append stores a copy of turn.
func (m *MemoryHistoryStore) Append(ctx context.Context, turn *store.Turn) error {
	if err := store.Prepare(turn); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[turn.SessionID] = append(m.sessions[turn.SessionID], clone(turn))
	return nil
}

// List returns copies of the session's turns.
func (m *MemoryHistoryStore) List(ctx context.Context, sessionID string) ([]*store.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := make([]*store.Turn, 0, len(m.sessions[sessionID]))
	for _, t := range m.sessions[sessionID] {
		turns = append(turns, clone(t))
	}
	return turns, nil
}

// Clear drops the session.
func (m *MemoryHistoryStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Close is a no-op.
func (m *MemoryHistoryStore) Close() error { return nil }

func clone(t *store.Turn) *store.Turn {
	c := *t
	c.Entities = slices.Clone(t.Entities)
	return &c
}
