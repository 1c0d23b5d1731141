package memstore

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/toolresult"
)

func TestPutThenFetchRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := New()
	sessionID := ids.SessionID("sess-1")
	payload := toolresult.Payload{ToolName: "search", Output: []byte("result body"), MimeType: "text/plain"}

	handle, err := store.Put(ctx, sessionID, payload)
	require.NoError(t, err)

	got, err := store.Fetch(ctx, sessionID, handle)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFetchScopedToOwningSession(t *testing.T) {
	ctx := context.Background()
	store := New()
	owner := ids.SessionID("owner")
	other := ids.SessionID("other")

	handle, err := store.Put(ctx, owner, toolresult.Payload{Output: []byte("secret")})
	require.NoError(t, err)

	_, err = store.Fetch(ctx, other, handle)
	assert.ErrorIs(t, err, toolresult.ErrNotFound)
}

func TestDeleteIsIdempotentAndRemovesEntry(t *testing.T) {
	ctx := context.Background()
	store := New()
	id := ids.SessionID("sess-2")
	handle, err := store.Put(ctx, id, toolresult.Payload{Output: []byte("x")})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id, handle))
	require.NoError(t, store.Delete(ctx, id, handle))

	_, err = store.Fetch(ctx, id, handle)
	assert.ErrorIs(t, err, toolresult.ErrNotFound)
}

func TestIdenticalOutputsWithinASessionCollapseToOneHandle(t *testing.T) {
	ctx := context.Background()
	store := New()
	id := ids.SessionID("sess-3")

	h1, err := store.Put(ctx, id, toolresult.Payload{ToolName: "a", Output: []byte("same")})
	require.NoError(t, err)
	h2, err := store.Put(ctx, id, toolresult.Payload{ToolName: "b", Output: []byte("same")})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

// TestPutPropertyHandleIsDeterministicDigestOfOutput verifies that the
// handle minted for a payload depends only on its Output bytes, so two
// Puts of the same bytes (even with different metadata) always collide and
// two Puts of different bytes never do.
func TestPutPropertyHandleIsDeterministicDigestOfOutput(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("equal output bytes always mint the same handle", prop.ForAll(
		func(a, b string) bool {
			ctx := context.Background()
			store := New()
			id := ids.SessionID("property-session")

			h1, err := store.Put(ctx, id, toolresult.Payload{Output: []byte(a)})
			if err != nil {
				return false
			}
			h2, err := store.Put(ctx, id, toolresult.Payload{Output: []byte(b)})
			if err != nil {
				return false
			}
			if a == b {
				return h1 == h2
			}
			return h1 != h2
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
