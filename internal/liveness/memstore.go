package liveness

import (
	"context"
	"sync"
	"time"

	"github.com/rudi77/taskforge/internal/ids"
)

// MemStore is an in-memory HeartbeatStore and CheckpointStore for tests and
// single-process deployments.
type MemStore struct {
	mu          sync.Mutex
	heartbeats  map[ids.SessionID]Heartbeat
	checkpoints map[ids.SessionID][]Checkpoint
}

var (
	_ HeartbeatStore  = (*MemStore)(nil)
	_ CheckpointStore = (*MemStore)(nil)
)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		heartbeats:  make(map[ids.SessionID]Heartbeat),
		checkpoints: make(map[ids.SessionID][]Checkpoint),
	}
}

// Beat implements HeartbeatStore.
func (m *MemStore) Beat(_ context.Context, sessionID ids.SessionID, progressMarker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats[sessionID] = Heartbeat{
		SessionID:      sessionID,
		At:             time.Now().UTC(),
		ProgressMarker: progressMarker,
	}
	return nil
}

// Get implements HeartbeatStore.
func (m *MemStore) Get(_ context.Context, sessionID ids.SessionID) (Heartbeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.heartbeats[sessionID]
	if !ok {
		return Heartbeat{}, ErrNotFound
	}
	return h, nil
}

// ListStale implements HeartbeatStore.
func (m *MemStore) ListStale(_ context.Context, ttl time.Duration) ([]Heartbeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-ttl)
	var out []Heartbeat
	for _, h := range m.heartbeats {
		if h.At.Before(cutoff) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Save implements CheckpointStore.
func (m *MemStore) Save(_ context.Context, sessionID ids.SessionID, checkpoint Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if checkpoint.At.IsZero() {
		checkpoint.At = time.Now().UTC()
	}
	checkpoint.SessionID = sessionID
	m.checkpoints[sessionID] = append(m.checkpoints[sessionID], checkpoint)
	return nil
}

// Latest implements CheckpointStore.
func (m *MemStore) Latest(_ context.Context, sessionID ids.SessionID) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cps := m.checkpoints[sessionID]
	if len(cps) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return cps[len(cps)-1], nil
}

// List implements CheckpointStore.
func (m *MemStore) List(_ context.Context, sessionID ids.SessionID) ([]Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Checkpoint(nil), m.checkpoints[sessionID]...), nil
}
