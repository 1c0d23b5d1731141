// Package ids provides strong identifier types and session-id derivation
// rules shared across the runtime.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SessionID is the durable identifier of a session. Sub-agent sessions nest
// their parent's id by appending ":sub_<role>_<short-random>".
type SessionID string

// RunID identifies one durable execution attempt of the agent loop.
type RunID string

// AgentIdent is the strong type for fully qualified agent identifiers
// (e.g. "research.specialist").
type AgentIdent string

// NewSessionID mints a fresh top-level session id.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewRunID mints a fresh run id.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// ShortRandom returns a short random suffix suitable for sub-agent ids.
func ShortRandom() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Child derives a sub-agent session id from a parent id and a specialist tag.
func Child(parent SessionID, tag string) SessionID {
	return SessionID(fmt.Sprintf("%s:sub_%s_%s", parent, tag, ShortRandom()))
}

// Depth returns the nesting depth of a session id, counted by ":" separators.
func Depth(id SessionID) int {
	return strings.Count(string(id), ":")
}

// Root returns the top-level ancestor session id.
func Root(id SessionID) SessionID {
	if idx := strings.Index(string(id), ":"); idx >= 0 {
		return id[:idx]
	}
	return id
}
