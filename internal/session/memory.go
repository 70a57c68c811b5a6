// Package session holds the in-process session store shared by every
// stream and datagram worker.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/Rrens/chat-bridge/internal/domain"
)

// entry is one session. Its own mutex serializes same-key operations so
// unrelated keys never contend on it.
type entry struct {
	mu    sync.Mutex
	turns domain.Conversation
}

// MemoryStore is a thread-safe in-memory domain.SessionStore
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionKey]*entry
}

// NewMemoryStore creates a new empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[domain.SessionKey]*entry),
	}
}

// lookup returns the entry for key, creating it if create is set
func (m *MemoryStore) lookup(key domain.SessionKey, create bool) *entry {
	m.mu.RLock()
	e, ok := m.sessions[key]
	m.mu.RUnlock()
	if ok || !create {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if e, ok := m.sessions[key]; ok {
		return e
	}
	e = &entry{turns: domain.Conversation{}}
	m.sessions[key] = e
	return e
}

// GetOrCreate returns a snapshot of the conversation for key
func (m *MemoryStore) GetOrCreate(_ context.Context, key domain.SessionKey) (domain.Conversation, error) {
	e := m.lookup(key, true)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turns.Clone(), nil
}

// Append adds one turn to an existing session
func (m *MemoryStore) Append(_ context.Context, key domain.SessionKey, turn domain.Turn) error {
	e := m.lookup(key, false)
	if e == nil {
		return fmt.Errorf("append to %s: %w", key, domain.ErrUnknownSession)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = append(e.turns, turn)
	return nil
}

// Clear resets the conversation for key, keeping the session addressable
func (m *MemoryStore) Clear(_ context.Context, key domain.SessionKey) error {
	e := m.lookup(key, true)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = domain.Conversation{}
	return nil
}

// Get returns a snapshot of the conversation without creating a session
func (m *MemoryStore) Get(_ context.Context, key domain.SessionKey) (domain.Conversation, bool, error) {
	e := m.lookup(key, false)
	if e == nil {
		return nil, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turns.Clone(), true, nil
}

// Keys lists all sessions
func (m *MemoryStore) Keys(_ context.Context) ([]domain.SessionKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]domain.SessionKey, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len returns the number of sessions
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
