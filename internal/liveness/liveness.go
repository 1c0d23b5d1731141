// Package liveness hosts the heartbeat and checkpoint stores used to detect
// and recover crashed sessions (spec §4.13), grounded on the teacher's
// run.Snapshot (derived liveness/progress view) and interrupt.Controller
// (pause/resume signaling) without the Temporal-signal machinery, since
// these stores are plain data contracts rather than workflow primitives.
package liveness

import (
	"context"
	"errors"
	"time"

	"github.com/rudi77/taskforge/internal/ids"
)

// ErrNotFound indicates no heartbeat or checkpoint exists for a session.
var ErrNotFound = errors.New("liveness: not found")

// Heartbeat is a single liveness beat recorded by a running session.
type Heartbeat struct {
	SessionID       ids.SessionID
	At              time.Time
	LivenessTag     string
	ProgressMarker  string
}

// HeartbeatStore records and queries session liveness (spec §4.13). The
// writer never deletes stale entries; that is left to an external janitor
// (spec §5 shared-resource policy).
type HeartbeatStore interface {
	// Beat records a heartbeat for sessionID with the given progress
	// marker, overwriting any prior beat.
	Beat(ctx context.Context, sessionID ids.SessionID, progressMarker string) error

	// Get returns the latest heartbeat for sessionID, or ErrNotFound.
	Get(ctx context.Context, sessionID ids.SessionID) (Heartbeat, error)

	// ListStale returns every session whose latest heartbeat is older than
	// ttl, candidates for crash recovery.
	ListStale(ctx context.Context, ttl time.Duration) ([]Heartbeat, error)
}

// Checkpoint is a coarse-grained resumable marker saved at a loop step
// boundary.
type Checkpoint struct {
	SessionID ids.SessionID
	At        time.Time
	Step      int
	Label     string
	State     []byte // opaque engine-specific snapshot
}

// CheckpointStore records and queries per-session checkpoints (spec §4.13).
type CheckpointStore interface {
	// Save appends a new checkpoint for sessionID.
	Save(ctx context.Context, sessionID ids.SessionID, checkpoint Checkpoint) error

	// Latest returns the most recently saved checkpoint for sessionID, or
	// ErrNotFound.
	Latest(ctx context.Context, sessionID ids.SessionID) (Checkpoint, error)

	// List returns every checkpoint saved for sessionID, oldest first.
	List(ctx context.Context, sessionID ids.SessionID) ([]Checkpoint, error)
}
