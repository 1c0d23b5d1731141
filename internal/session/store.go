// Package session defines the versioned session-state store (spec §4.1) and
// the State blob persisted at every loop step boundary. Session lifecycle and
// the optimistic-concurrency save contract mirror the teacher's
// runtime/agent/session package generalized from run/turn metadata to full
// agent-loop state snapshots.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/plan"
)

// PendingQuestion records an outstanding ask_user/wait-gate question a
// session is blocked on (spec §3 "PendingQuestion").
type PendingQuestion struct {
	Question          string
	RequiredInputsSchema []byte
}

// State is the opaque structured document persisted per session (spec §4.1):
// message history, plan snapshot, tool-result handles, pending question,
// update timestamp, and version.
type State struct {
	SessionID       ids.SessionID
	AgentID         ids.AgentIdent
	History         []model.Message
	Plan            *plan.Plan
	ToolResultHandles []string
	PendingQuestion *PendingQuestion
	UpdatedAt       time.Time
	Version         int
}

// Clone returns a deep-enough copy of State so callers holding a loaded
// snapshot cannot observe mutations made by a concurrent writer.
func (s State) Clone() State {
	out := s
	out.History = append([]model.Message(nil), s.History...)
	out.ToolResultHandles = append([]string(nil), s.ToolResultHandles...)
	if s.Plan != nil {
		p := *s.Plan
		p.Items = append([]plan.Item(nil), s.Plan.Items...)
		out.Plan = &p
	}
	if s.PendingQuestion != nil {
		pq := *s.PendingQuestion
		out.PendingQuestion = &pq
	}
	return out
}

// ErrVersionConflict indicates a Save call's expected_version did not match
// the version currently stored (spec §4.1, §8 invariants 1 and 7).
var ErrVersionConflict = errors.New("session: version conflict")

// ErrNotFound indicates no state is stored for the given session id.
var ErrNotFound = errors.New("session: state not found")

// Store is the versioned persistence contract for session state (spec §4.1).
// Implementations must be safe for concurrent use and must make Save atomic:
// a writer either replaces the stored state and bumps the version, or fails
// with ErrVersionConflict, never partially.
type Store interface {
	// Save atomically replaces the stored state for sessionID only if the
	// currently stored version equals expectedVersion (0 for a session with
	// no prior state). On success the new stored version is
	// expectedVersion+1. On mismatch it returns ErrVersionConflict.
	Save(ctx context.Context, sessionID ids.SessionID, state State, expectedVersion int) error

	// Load returns the latest state and its version, or ErrNotFound.
	Load(ctx context.Context, sessionID ids.SessionID) (State, error)

	// Delete removes the stored state for sessionID. Idempotent.
	Delete(ctx context.Context, sessionID ids.SessionID) error

	// List enumerates all session ids with stored state.
	List(ctx context.Context) ([]ids.SessionID, error)
}
