// Package memstore is an in-memory session.Store for tests and single-process
// deployments, grounded on the teacher's runtime/agent/session/inmem package.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/session"
)

type entry struct {
	state   session.State
	version int
}

// Store is a mutex-protected map implementation of session.Store.
type Store struct {
	mu      sync.Mutex
	entries map[ids.SessionID]entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[ids.SessionID]entry)}
}

// Save implements session.Store.
func (s *Store) Save(_ context.Context, sessionID ids.SessionID, state session.State, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[sessionID]
	curVersion := 0
	if ok {
		curVersion = cur.version
	}
	if curVersion != expectedVersion {
		return session.ErrVersionConflict
	}
	state = state.Clone()
	state.Version = expectedVersion + 1
	state.UpdatedAt = time.Now().UTC()
	s.entries[sessionID] = entry{state: state, version: state.Version}
	return nil
}

// Load implements session.Store.
func (s *Store) Load(_ context.Context, sessionID ids.SessionID) (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return session.State{}, session.ErrNotFound
	}
	return e.state.Clone(), nil
}

// Delete implements session.Store. Idempotent.
func (s *Store) Delete(_ context.Context, sessionID ids.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// List implements session.Store.
func (s *Store) List(_ context.Context) ([]ids.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ids.SessionID, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out, nil
}
