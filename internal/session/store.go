// Package session persists conversation state between turns and serializes
// turns that share a session id.
package session

import (
	"context"
	"sync"

	"nephro-assistant/internal/core"
)

// Store loads and saves session state by id.  Load returns a fresh session
// for an unknown id and never hands out a value shared with the store, so a
// turn that fails can be dropped by not calling Save.
type Store interface {
	Load(ctx context.Context, id string) (*core.Session, error)
	Save(ctx context.Context, sess *core.Session) error
}

// MemoryStore keeps sessions in process memory.  Sessions are never evicted.
type MemoryStore struct {
	mu              sync.RWMutex
	sessions        map[string]*core.Session
	defaultAllowWeb bool
}

// NewMemoryStore returns an empty store.  New sessions start with AllowWeb
// set to defaultAllowWeb.
func NewMemoryStore(defaultAllowWeb bool) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*core.Session), defaultAllowWeb: defaultAllowWeb}
}

// Load returns a copy of the stored session, or a new one.
func (m *MemoryStore) Load(_ context.Context, id string) (*core.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s.Clone(), nil
	}
	s := core.NewSession(id)
	s.AllowWeb = m.defaultAllowWeb
	return s, nil
}

// Save stores a copy of sess.
func (m *MemoryStore) Save(_ context.Context, sess *core.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess.Clone()
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
