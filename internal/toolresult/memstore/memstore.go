// Package memstore is an in-memory toolresult.Store for tests and
// single-process deployments.
package memstore

import (
	"crypto/sha256"
	"encoding/hex"
	"context"
	"sync"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/toolresult"
)

type key struct {
	session ids.SessionID
	handle  string
}

// Store is a mutex-protected map implementation of toolresult.Store.
type Store struct {
	mu      sync.Mutex
	entries map[key]toolresult.Payload
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[key]toolresult.Payload)}
}

// Put implements toolresult.Store. The handle is the hex SHA-256 digest of
// the payload so identical outputs within a session collapse to one entry.
func (s *Store) Put(_ context.Context, sessionID ids.SessionID, payload toolresult.Payload) (string, error) {
	sum := sha256.Sum256(payload.Output)
	handle := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key{sessionID, handle}] = payload
	return handle, nil
}

// Fetch implements toolresult.Store.
func (s *Store) Fetch(_ context.Context, sessionID ids.SessionID, handle string) (toolresult.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[key{sessionID, handle}]
	if !ok {
		return toolresult.Payload{}, toolresult.ErrNotFound
	}
	return p, nil
}

// Delete implements toolresult.Store. Idempotent.
func (s *Store) Delete(_ context.Context, sessionID ids.SessionID, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key{sessionID, handle})
	return nil
}
