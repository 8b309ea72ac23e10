package session

import (
	"fmt"
	"sync"

	"github.com/hupe1980/qamesh/core"
)

// InMemoryStore is a volatile SessionStore keeping sessions in a process
// local map. Safe for concurrent access; best suited for tests and
// ephemeral use. Returned sessions are clones to prevent external mutation
// of stored state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create persists a clone of the new session record.
func (s *InMemoryStore) Create(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Get returns a clone of the stored session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Finalize replaces the stored record with the terminal snapshot.
func (s *InMemoryStore) Finalize(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return core.ErrSessionNotFound
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}
