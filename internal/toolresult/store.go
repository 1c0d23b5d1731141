// Package toolresult defines the content-addressed store for large tool
// outputs (spec §4.2). Tool executor substitutes outputs over a size
// threshold with an opaque handle so history (internal/history) carries a
// small reference instead of the full payload; the payload stays
// retrievable through Store.Fetch. No read_tool_result tool is registered in
// this repository.
package toolresult

import (
	"context"
	"errors"

	"github.com/rudi77/taskforge/internal/ids"
)

// ErrNotFound indicates no payload is stored under the given handle.
var ErrNotFound = errors.New("toolresult: handle not found")

// Payload is the full output of a tool call, stored out of line from the
// session history.
type Payload struct {
	ToolName string
	Output   []byte
	MimeType string
}

// Store is the content-addressed tool-result store contract. Handles are
// opaque to callers and scoped to a session: a handle minted for one
// session must not resolve a fetch scoped to another.
type Store interface {
	// Put stores payload under a new handle scoped to sessionID.
	Put(ctx context.Context, sessionID ids.SessionID, payload Payload) (handle string, err error)

	// Fetch returns the payload for handle within sessionID, or ErrNotFound.
	Fetch(ctx context.Context, sessionID ids.SessionID, handle string) (Payload, error)

	// Delete removes the payload for handle within sessionID. Idempotent.
	Delete(ctx context.Context, sessionID ids.SessionID, handle string) error
}
